package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// accountsCollection holds one document per account
const accountsCollection = "accounts"

// accountDocument is the stored shape of an account. Pass-through profile
// fields are inlined at the top level of the document.
type accountDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	Token     string             `bson:"token,omitempty"`
	FirstName string             `bson:"firstName,omitempty"`
	LastName  string             `bson:"lastName,omitempty"`
	Image     string             `bson:"image,omitempty"`
	Country   string             `bson:"country,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
	Extra     bson.M             `bson:",inline"`
}

func (d accountDocument) toAccount() *models.Account {
	a := &models.Account{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Password:  d.Password,
		Role:      models.Role(d.Role),
		Token:     d.Token,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Image:     d.Image,
		Country:   d.Country,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if len(d.Extra) > 0 {
		a.Extra = map[string]interface{}(d.Extra)
	}
	return a
}

// MongoStore keeps accounts in a MongoDB collection
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo dials uri and verifies the connection with a ping
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return NewMongoStore(client, database), nil
}

// NewMongoStore uses the accounts collection of database on client
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(accountsCollection),
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.ErrAccountNotFound
	}
	return oid, nil
}

func (s *MongoStore) EnsureSchema(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	doc := accountDocument{
		ID:        primitive.NewObjectID(),
		Email:     account.Email,
		Password:  account.Password,
		Role:      string(account.Role),
		Token:     account.Token,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Image:     account.Image,
		Country:   account.Country,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(account.Extra) > 0 {
		doc.Extra = bson.M(account.Extra)
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}

	account.ID = doc.ID.Hex()
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindOne(ctx context.Context, query models.AccountQuery) (*models.Account, error) {
	if query.Email != "" {
		return s.findOne(ctx, bson.M{"email": query.Email})
	}
	return s.findOne(ctx, bson.M{"firstName": query.FirstName, "lastName": query.LastName})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var doc accountDocument
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toAccount(), nil
}

func (s *MongoStore) List(ctx context.Context) ([]*models.Account, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	accounts := make([]*models.Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, doc.toAccount())
	}
	return accounts, nil
}

func (s *MongoStore) SetToken(ctx context.Context, id, token string) error {
	return s.set(ctx, id, bson.M{"token": token})
}

func (s *MongoStore) SetRole(ctx context.Context, id string, role models.Role) error {
	return s.set(ctx, id, bson.M{"role": string(role)})
}

func (s *MongoStore) Update(ctx context.Context, id string, changes models.AccountChanges) error {
	fields := bson.M{}
	for k, v := range changes.Profile.Extra {
		fields[k] = v
	}
	if changes.Email != nil {
		fields["email"] = *changes.Email
	}
	if changes.Password != nil {
		fields["password"] = *changes.Password
	}
	p := changes.Profile
	for key, value := range map[string]*string{
		"firstName": p.FirstName,
		"lastName":  p.LastName,
		"image":     p.Image,
		"country":   p.Country,
	} {
		if value != nil {
			fields[key] = *value
		}
	}

	err := s.set(ctx, id, fields)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrEmailTaken
	}
	return err
}

// set applies a $set of fields plus the updatedAt stamp to a single account
func (s *MongoStore) set(ctx context.Context, id string, fields bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	fields["updatedAt"] = time.Now().UTC()

	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
