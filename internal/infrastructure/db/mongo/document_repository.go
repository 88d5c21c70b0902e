package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fishsupply/supply-system/internal/core/domain"
	"github.com/fishsupply/supply-system/internal/core/ports"
)

const uniqueIndexPrefix = "uniq_"

var dupKeyIndex = regexp.MustCompile(`index: ` + uniqueIndexPrefix + `(\S+)`)

// DocumentRepository stores the documents of one schema in its own collection.
type DocumentRepository struct {
	col    *mongo.Collection
	schema *domain.Schema
}

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository(db *mongo.Database, schema *domain.Schema) *DocumentRepository {
	return &DocumentRepository{col: db.Collection(schema.Collection), schema: schema}
}

// Insert stores doc under a fresh ObjectID.
func (r *DocumentRepository) Insert(ctx context.Context, doc domain.Document) (domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid := primitive.NewObjectID()
	record := bson.M{}
	for k, v := range doc {
		record[k] = v
	}
	record[domain.FieldID] = oid

	if _, err := r.col.InsertOne(ctx, record); err != nil {
		return nil, r.writeError("insert", err)
	}

	out := doc.Clone()
	out[domain.FieldID] = oid.Hex()
	return out, nil
}

// FindAll returns every document ordered by sort, or natural order when sort is empty.
func (r *DocumentRepository) FindAll(ctx context.Context, sort []domain.SortKey) ([]domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find()
	if len(sort) > 0 {
		order := bson.D{}
		for _, k := range sort {
			dir := 1
			if k.Desc {
				dir = -1
			}
			order = append(order, bson.E{Key: k.Field, Value: dir})
		}
		opts.SetSort(order)
	}

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, &domain.StoreError{Op: "find", Err: err}
	}
	defer cur.Close(ctx)

	docs := make([]domain.Document, 0)
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, &domain.StoreError{Op: "decode", Err: err}
		}
		docs = append(docs, fromBSON(m))
	}
	if err := cur.Err(); err != nil {
		return nil, &domain.StoreError{Op: "find", Err: err}
	}
	return docs, nil
}

// FindByID retrieves one document by its hex ObjectID.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (domain.Document, error) {
	oid, err := r.objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m bson.M
	if err := r.col.FindOne(ctx, bson.M{domain.FieldID: oid}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound(r.schema.Title())
		}
		return nil, &domain.StoreError{Op: "find", Err: err}
	}
	return fromBSON(m), nil
}

// ExistsBy reports whether a document other than excludeID holds value in field.
func (r *DocumentRepository) ExistsBy(ctx context.Context, field string, value any, excludeID string) (bool, error) {
	filter := bson.M{field: value}
	if excludeID != "" {
		oid, err := r.objectID(excludeID)
		if err != nil {
			return false, err
		}
		filter[domain.FieldID] = bson.M{"$ne": oid}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, &domain.StoreError{Op: "count", Err: err}
	}
	return n > 0, nil
}

// Update applies $set and returns the document after the change.
func (r *DocumentRepository) Update(ctx context.Context, id string, set domain.Document) (domain.Document, error) {
	oid, err := r.objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	fields := bson.M{}
	for k, v := range set {
		if k == domain.FieldID {
			continue
		}
		fields[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m bson.M
	err = r.col.FindOneAndUpdate(ctx, bson.M{domain.FieldID: oid}, bson.M{"$set": fields}, opts).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound(r.schema.Title())
		}
		return nil, r.writeError("update", err)
	}
	return fromBSON(m), nil
}

// Delete removes the document with the given id.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	oid, err := r.objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{domain.FieldID: oid})
	if err != nil {
		return &domain.StoreError{Op: "delete", Err: err}
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(r.schema.Title())
	}
	return nil
}

// EnsureIndexes creates one unique index per unique field, sparse when the
// field is optional, plus an index per sort key.
func (r *DocumentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var indexes []mongo.IndexModel
	for _, f := range r.schema.UniqueFields() {
		opts := uniqueIndex(f.Name)
		if !f.Required {
			opts.SetSparse(true)
		}
		indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: f.Name, Value: 1}}, Options: opts})
	}
	for _, k := range r.schema.Sort {
		dir := 1
		if k.Desc {
			dir = -1
		}
		indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: k.Field, Value: dir}}})
	}
	if len(indexes) == 0 {
		return nil
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("ensure indexes on %s: %w", r.schema.Collection, err)
	}
	return nil
}

func (r *DocumentRepository) objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.InvalidID(r.schema.Entity)
	}
	return oid, nil
}

// writeError turns a duplicate key violation on a uniq_ index into a
// ConflictError naming the field.
func (r *DocumentRepository) writeError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		conflict := &domain.ConflictError{Entity: r.schema.Entity}
		if m := dupKeyIndex.FindStringSubmatch(err.Error()); m != nil {
			conflict.Add(m[1])
		} else {
			conflict.Add("document")
		}
		return conflict
	}
	return &domain.StoreError{Op: op, Err: err}
}

// fromBSON converts decoded driver values into the Document value set.
func fromBSON(m bson.M) domain.Document {
	doc := make(domain.Document, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case primitive.ObjectID:
			doc[k] = v.Hex()
		case primitive.DateTime:
			doc[k] = v.Time().UTC()
		case int32:
			doc[k] = int64(v)
		case primitive.Decimal128:
			if n, err := strconv.ParseFloat(v.String(), 64); err == nil {
				doc[k] = n
			} else {
				doc[k] = v.String()
			}
		default:
			doc[k] = v
		}
	}
	return doc
}
