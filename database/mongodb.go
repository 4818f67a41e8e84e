package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"securechat/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	roomsCollection = "chat_rooms"
	queryTimeout    = 5 * time.Second
)

// ConnectMongoDB 建立並初始化 MongoDB 連線
func ConnectMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	log.Println("Connected to MongoDB successfully!")
	return client, nil
}

// DisconnectMongoDB 關閉 MongoDB 連線
func DisconnectMongoDB(client *mongo.Client) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	} else {
		log.Println("Disconnected from MongoDB.")
	}
}

// MongoRoomRepository 以 MongoDB 儲存聊天室
type MongoRoomRepository struct {
	collection *mongo.Collection
}

// NewMongoRoomRepository 建立 repository 並確保索引存在
func NewMongoRoomRepository(ctx context.Context, db *mongo.Database) (*MongoRoomRepository, error) {
	collection := db.Collection(roomsCollection)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// 存取金鑰必須唯一；createdAt 用於列表排序
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "accessKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create chat_rooms indexes: %w", err)
	}
	log.Println("Indexes ensured for chat_rooms collection.")

	return &MongoRoomRepository{collection: collection}, nil
}

func (r *MongoRoomRepository) Insert(ctx context.Context, room *models.ChatRoom) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, room); err != nil {
		log.Printf("Error inserting chat room: %v", err)
		return err
	}
	return nil
}

func (r *MongoRoomRepository) List(ctx context.Context) ([]models.ChatRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		log.Printf("Error listing chat rooms: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	rooms := []models.ChatRoom{}
	if err = cursor.All(ctx, &rooms); err != nil {
		log.Printf("Error decoding chat rooms: %v", err)
		return nil, err
	}
	return rooms, nil
}

func (r *MongoRoomRepository) FindByID(ctx context.Context, id string) (*models.ChatRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var room models.ChatRoom
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		log.Printf("Error finding chat room %s: %v", id, err)
		return nil, err
	}
	return &room, nil
}

func (r *MongoRoomRepository) Update(ctx context.Context, id string, patch models.RoomPatch) (*models.ChatRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.AdminNote != nil {
		set["adminNote"] = *patch.AdminNote
	}
	if patch.ClientNote != nil {
		set["clientNote"] = *patch.ClientNote
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var room models.ChatRoom
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		log.Printf("Error updating chat room %s: %v", id, err)
		return nil, err
	}
	return &room, nil
}

func (r *MongoRoomRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		log.Printf("Error deleting chat room %s: %v", id, err)
		return err
	}
	if result.DeletedCount == 0 {
		return models.ErrRoomNotFound
	}
	return nil
}
