package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"evsync/entity"
	"evsync/internal/config"
)

const (
	collectionUsers         = "users"
	collectionEvents        = "events"
	collectionParticipants  = "participants"
	collectionInvites       = "invite_tokens"
	collectionRequests      = "event_requests"
	collectionNotifications = "notifications"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(context.Background())
}

// findError hides the driver's no-documents sentinel: absent rows come back
// as (nil, nil) and the caller decides what absence means.
func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return m.opError("find", err)
}

// opError converts driver failures into domain errors where a typed outcome
// exists: deadline hits become ErrTimeout, unique-index violations become
// ErrConflict.
func (m *MongoDB) opError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, entity.ErrTimeout)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, entity.ErrConflict)
	}
	return fmt.Errorf("mongodb %s: %w", op, err)
}

// EnsureIndexes creates the unique indexes the join path relies on:
// participants (event_slug, email) and event_requests slug. Without these
// the lookup-then-insert in the registry would be a read-then-write race.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	_, err = db.Collection(collectionParticipants).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_slug", Value: 1}, {Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return m.opError("create participants index", err)
	}

	_, err = db.Collection(collectionRequests).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return m.opError("create requests index", err)
	}

	_, err = db.Collection(collectionInvites).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return m.opError("create invites index", err)
	}

	_, err = db.Collection(collectionUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return m.opError("create users index", err)
}

func (m *MongoDB) GetUser(ctx context.Context, token string) (*entity.User, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "token", Value: token}}
	var user entity.User
	err = collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		return nil, m.findError(err)
	}
	return &user, nil
}

func (m *MongoDB) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "email", Value: email}}
	var user entity.User
	err = collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		return nil, m.findError(err)
	}
	return &user, nil
}

func (m *MongoDB) GetAdmins(ctx context.Context) ([]*entity.User, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "role", Value: entity.RoleAdmin}}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, m.opError("list admins", err)
	}
	defer cursor.Close(ctx)

	var users []*entity.User
	err = cursor.All(ctx, &users)
	if err != nil {
		return nil, m.opError("decode admins", err)
	}
	return users, nil
}

// SetTelegramLink stores the chat id a user linked via the bot's /start.
func (m *MongoDB) SetTelegramLink(ctx context.Context, email string, telegramId int64, username string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "email", Value: email}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "telegram_id", Value: telegramId},
		{Key: "telegram_username", Value: username},
		{Key: "telegram_enabled", Value: true},
	}}}
	_, err = collection.UpdateOne(ctx, filter, update)
	return m.opError("set telegram link", err)
}

func (m *MongoDB) SaveUser(ctx context.Context, user *entity.User) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "email", Value: user.Email}}
	update := bson.D{{Key: "$set", Value: user}}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(ctx, filter, update, opts)
	return m.opError("save user", err)
}

func (m *MongoDB) GetEvent(ctx context.Context, slug string) (*entity.Event, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionEvents)
	filter := bson.D{{Key: "slug", Value: slug}}
	var event entity.Event
	err = collection.FindOne(ctx, filter).Decode(&event)
	if err != nil {
		return nil, m.findError(err)
	}
	return &event, nil
}

func (m *MongoDB) SaveEvent(ctx context.Context, event *entity.Event) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionEvents)
	filter := bson.D{{Key: "slug", Value: event.Slug}}
	update := bson.D{{Key: "$set", Value: event}}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(ctx, filter, update, opts)
	return m.opError("save event", err)
}

// FindValidInvite returns the token row only when it has not expired yet.
// A token with expires_at equal to now counts as expired.
func (m *MongoDB) FindValidInvite(ctx context.Context, token string, now time.Time) (*entity.InviteToken, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionInvites)
	filter := bson.D{{Key: "token", Value: token}, {Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}}}
	var invite entity.InviteToken
	err = collection.FindOne(ctx, filter).Decode(&invite)
	if err != nil {
		return nil, m.findError(err)
	}
	return &invite, nil
}

// IncrementRegistered is the ledger's compare-and-increment: the capacity
// and expiry checks sit in the filter of a single FindOneAndUpdate, so two
// concurrent redemptions of a near-capacity token cannot both pass the
// bound. Returns (nil, nil) when no document matches; the caller classifies
// why (expired, missing, or full) by re-reading.
func (m *MongoDB) IncrementRegistered(ctx context.Context, token string, now time.Time, capacity int) (*entity.InviteToken, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionInvites)
	filter := bson.D{
		{Key: "token", Value: token},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}},
		{Key: "registered", Value: bson.D{{Key: "$lt", Value: capacity}}},
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "registered", Value: 1}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var invite entity.InviteToken
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&invite)
	if err != nil {
		return nil, m.findError(err)
	}
	return &invite, nil
}

func (m *MongoDB) CreateInvite(ctx context.Context, invite *entity.InviteToken) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionInvites)
	_, err = collection.InsertOne(ctx, invite)
	return m.opError("create invite", err)
}

func (m *MongoDB) GetParticipant(ctx context.Context, eventSlug, email string) (*entity.Participant, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionParticipants)
	filter := bson.D{{Key: "event_slug", Value: eventSlug}, {Key: "email", Value: email}}
	var participant entity.Participant
	err = collection.FindOne(ctx, filter).Decode(&participant)
	if err != nil {
		return nil, m.findError(err)
	}
	return &participant, nil
}

// CreateParticipant inserts a new row; the unique (event_slug, email) index
// rejects a concurrent duplicate, which surfaces as entity.ErrConflict.
func (m *MongoDB) CreateParticipant(ctx context.Context, participant *entity.Participant) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionParticipants)
	_, err = collection.InsertOne(ctx, participant)
	return m.opError("create participant", err)
}

func (m *MongoDB) LinkParticipantUser(ctx context.Context, participantId, userId string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionParticipants)
	filter := bson.D{{Key: "id", Value: participantId}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "user_id", Value: userId},
		{Key: "updated_at", Value: time.Now()},
	}}}
	_, err = collection.UpdateOne(ctx, filter, update)
	return m.opError("link participant user", err)
}

func (m *MongoDB) ParticipantsForEvent(ctx context.Context, eventSlug string) ([]*entity.Participant, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionParticipants)
	filter := bson.D{{Key: "event_slug", Value: eventSlug}}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, m.opError("list participants", err)
	}
	defer cursor.Close(ctx)

	var participants []*entity.Participant
	err = cursor.All(ctx, &participants)
	if err != nil {
		return nil, m.opError("decode participants", err)
	}
	return participants, nil
}

func (m *MongoDB) GetParticipantById(ctx context.Context, participantId string) (*entity.Participant, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionParticipants)
	filter := bson.D{{Key: "id", Value: participantId}}
	var participant entity.Participant
	err = collection.FindOne(ctx, filter).Decode(&participant)
	if err != nil {
		return nil, m.findError(err)
	}
	return &participant, nil
}

func (m *MongoDB) SetPaymentStatus(ctx context.Context, participantId string, status entity.PaymentStatus) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionParticipants)
	filter := bson.D{{Key: "id", Value: participantId}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "payment_status", Value: status},
		{Key: "updated_at", Value: time.Now()},
	}}}
	_, err = collection.UpdateOne(ctx, filter, update)
	return m.opError("set payment status", err)
}

func (m *MongoDB) GetEventRequest(ctx context.Context, slug string) (*entity.EventRequest, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRequests)
	filter := bson.D{{Key: "slug", Value: slug}, {Key: "deleted_at", Value: nil}}
	var request entity.EventRequest
	err = collection.FindOne(ctx, filter).Decode(&request)
	if err != nil {
		return nil, m.findError(err)
	}
	return &request, nil
}

// CreateEventRequest inserts a new request; slug uniqueness is enforced by
// the index, a collision surfaces as entity.ErrConflict so the workflow can
// retry with a disambiguated slug.
func (m *MongoDB) CreateEventRequest(ctx context.Context, request *entity.EventRequest) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRequests)
	_, err = collection.InsertOne(ctx, request)
	return m.opError("create event request", err)
}

func (m *MongoDB) DeleteEventRequest(ctx context.Context, slug string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRequests)
	filter := bson.D{{Key: "slug", Value: slug}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "deleted_at", Value: time.Now()}}}}
	_, err = collection.UpdateOne(ctx, filter, update)
	return m.opError("delete event request", err)
}

// SaveNotification keeps a per-recipient audit copy of a delivered (or
// attempted) notification.
func (m *MongoDB) SaveNotification(ctx context.Context, recipient string, n *entity.Notification) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionNotifications)
	doc := bson.D{
		{Key: "recipient", Value: recipient},
		{Key: "title", Value: n.Title},
		{Key: "message", Value: n.Message},
		{Key: "emit_event", Value: n.EmitEvent},
		{Key: "event_slug", Value: n.EventSlug},
		{Key: "metadata", Value: n.Metadata},
		{Key: "created_at", Value: n.CreatedAt},
	}
	_, err = collection.InsertOne(ctx, doc)
	return m.opError("save notification", err)
}
