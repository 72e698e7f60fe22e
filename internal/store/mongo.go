package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 5 * time.Second

type roomDocument struct {
	Id             string    `bson:"_id"`
	PasswordHash   string    `bson:"password_hash,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	LastActivityAt time.Time `bson:"last_activity_at"`
}

type messageDocument struct {
	Id             string    `bson:"_id"`
	RoomId         string    `bson:"room_id"`
	SenderId       string    `bson:"sender_id"`
	SenderNickname string    `bson:"sender_nickname"`
	Content        string    `bson:"content"`
	CreatedAt      time.Time `bson:"created_at"`
}

type participantDocument struct {
	Id               string    `bson:"participant_id"`
	RoomId           string    `bson:"room_id"`
	Nickname         string    `bson:"nickname"`
	ConnectionHandle string    `bson:"connection_handle"`
	JoinedAt         time.Time `bson:"joined_at"`
}

// MongoRepository backs the Repository interface with a document store.
// Rooms remain ephemeral; this only moves the room state out of process
// memory, it does not change the reaping semantics.
type MongoRepository struct {
	client       *mongo.Client
	rooms        *mongo.Collection
	messages     *mongo.Collection
	participants *mongo.Collection
}

func NewMongoRepository(ctx context.Context, uri, dbName string) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := client.Database(dbName)
	return &MongoRepository{
		client:       client,
		rooms:        db.Collection("rooms"),
		messages:     db.Collection("messages"),
		participants: db.Collection("participants"),
	}, nil
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), mongoOpTimeout)
}

func (m *MongoRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	ctx, cancel := opContext()
	defer cancel()

	now := time.Now().UTC()
	doc := roomDocument{
		Id:             params.Id,
		PasswordHash:   params.PasswordHash,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if _, err := m.rooms.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Room{}, ErrRoomExists
		}
		return Room{}, fmt.Errorf("insert room: %w", err)
	}

	return Room{
		Id:             doc.Id,
		PasswordHash:   doc.PasswordHash,
		CreatedAt:      doc.CreatedAt,
		LastActivityAt: doc.LastActivityAt,
	}, nil
}

func (m *MongoRepository) GetRoom(id string) (Room, error) {
	ctx, cancel := opContext()
	defer cancel()

	var doc roomDocument
	if err := m.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, fmt.Errorf("find room: %w", err)
	}

	count, err := m.participants.CountDocuments(ctx, bson.M{"room_id": id})
	if err != nil {
		return Room{}, fmt.Errorf("count participants: %w", err)
	}

	return Room{
		Id:               doc.Id,
		PasswordHash:     doc.PasswordHash,
		CreatedAt:        doc.CreatedAt,
		LastActivityAt:   doc.LastActivityAt,
		ParticipantCount: int(count),
	}, nil
}

func (m *MongoRepository) TouchActivity(id string) error {
	ctx, cancel := opContext()
	defer cancel()

	return m.touchActivity(ctx, id)
}

func (m *MongoRepository) touchActivity(ctx context.Context, id string) error {
	res, err := m.rooms.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_activity_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}

	return nil
}

func (m *MongoRepository) DeleteRoom(id string) error {
	ctx, cancel := opContext()
	defer cancel()

	res, err := m.rooms.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrRoomNotFound
	}

	if _, err := m.messages.DeleteMany(ctx, bson.M{"room_id": id}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := m.participants.DeleteMany(ctx, bson.M{"room_id": id}); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}

	return nil
}

func (m *MongoRepository) ListInactiveRooms(threshold time.Duration) ([]Room, error) {
	ctx, cancel := opContext()
	defer cancel()

	cutoff := time.Now().UTC().Add(-threshold)
	cur, err := m.rooms.Find(ctx, bson.M{"last_activity_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, fmt.Errorf("find inactive rooms: %w", err)
	}
	defer cur.Close(ctx)

	var rooms []Room
	for cur.Next(ctx) {
		var doc roomDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
		rooms = append(rooms, Room{
			Id:             doc.Id,
			PasswordHash:   doc.PasswordHash,
			CreatedAt:      doc.CreatedAt,
			LastActivityAt: doc.LastActivityAt,
		})
	}

	return rooms, cur.Err()
}

func (m *MongoRepository) AppendMessage(params AppendMessageParams) (Message, error) {
	ctx, cancel := opContext()
	defer cancel()

	// touching activity first doubles as the room-exists check
	if err := m.touchActivity(ctx, params.RoomId); err != nil {
		return Message{}, err
	}

	doc := messageDocument{
		Id:             uuid.NewString(),
		RoomId:         params.RoomId,
		SenderId:       params.SenderId,
		SenderNickname: params.SenderNickname,
		Content:        params.Content,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := m.messages.InsertOne(ctx, doc); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	return Message{
		Id:             doc.Id,
		RoomId:         doc.RoomId,
		SenderId:       doc.SenderId,
		SenderNickname: doc.SenderNickname,
		Content:        doc.Content,
		CreatedAt:      doc.CreatedAt,
	}, nil
}

func (m *MongoRepository) ListMessages(roomId string) ([]Message, error) {
	ctx, cancel := opContext()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := m.messages.Find(ctx, bson.M{"room_id": roomId}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []Message
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, Message{
			Id:             doc.Id,
			RoomId:         doc.RoomId,
			SenderId:       doc.SenderId,
			SenderNickname: doc.SenderNickname,
			Content:        doc.Content,
			CreatedAt:      doc.CreatedAt,
		})
	}

	return msgs, cur.Err()
}

func (m *MongoRepository) DeleteMessages(roomId string) error {
	ctx, cancel := opContext()
	defer cancel()

	if _, err := m.messages.DeleteMany(ctx, bson.M{"room_id": roomId}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	return nil
}

func (m *MongoRepository) AddParticipant(roomId string, p Participant) error {
	ctx, cancel := opContext()
	defer cancel()

	if err := m.touchActivity(ctx, roomId); err != nil {
		return err
	}

	doc := participantDocument{
		Id:               p.Id,
		RoomId:           roomId,
		Nickname:         p.Nickname,
		ConnectionHandle: p.ConnectionHandle,
		JoinedAt:         p.JoinedAt,
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"room_id": roomId, "connection_handle": p.ConnectionHandle}
	if _, err := m.participants.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}

	return nil
}

func (m *MongoRepository) RemoveParticipant(roomId, handle string) error {
	ctx, cancel := opContext()
	defer cancel()

	filter := bson.M{"room_id": roomId, "connection_handle": handle}
	res, err := m.participants.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}

	if res.DeletedCount > 0 {
		if err := m.touchActivity(ctx, roomId); err != nil && err != ErrRoomNotFound {
			return err
		}
	}

	return nil
}

func (m *MongoRepository) ListParticipants(roomId string) ([]Participant, error) {
	ctx, cancel := opContext()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	cur, err := m.participants.Find(ctx, bson.M{"room_id": roomId}, opts)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	defer cur.Close(ctx)

	var participants []Participant
	for cur.Next(ctx) {
		var doc participantDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode participant: %w", err)
		}
		participants = append(participants, Participant{
			Id:               doc.Id,
			Nickname:         doc.Nickname,
			ConnectionHandle: doc.ConnectionHandle,
			JoinedAt:         doc.JoinedAt,
		})
	}

	return participants, cur.Err()
}
