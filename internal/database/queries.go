package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmcardle/go-chatserver/internal/types"
)

const roomColumns = "id, external_id, name, image, kind, participants, admins, " +
	"created_by, updated_by, active, deleted, created_at, updated_at"

const messageColumns = "m.id, r.external_id, m.sender_id, m.body, m.receipts, " +
	"m.active, m.deleted, m.created_at"

func scanRoom(row interface{ Scan(...any) error }) (*types.Room, error) {
	var (
		room         types.Room
		participants []byte
		admins       []byte
	)

	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.Image,
		&room.Kind,
		&participants,
		&admins,
		&room.CreatedBy,
		&room.UpdatedBy,
		&room.Active,
		&room.Deleted,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(participants, &room.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal(admins, &room.Admins); err != nil {
		return nil, fmt.Errorf("decode admins: %w", err)
	}

	return &room, nil
}

func scanMessage(row interface{ Scan(...any) error }) (*types.Message, error) {
	var (
		msg      types.Message
		receipts []byte
	)

	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.Body,
		&receipts,
		&msg.Active,
		&msg.Deleted,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(receipts, &msg.Receipts); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}

	return &msg, nil
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (*types.Room, error) {
	participants, err := json.Marshal(params.Participants)
	if err != nil {
		return nil, fmt.Errorf("encode participants: %w", err)
	}
	admins, err := json.Marshal(params.Admins)
	if err != nil {
		return nil, fmt.Errorf("encode admins: %w", err)
	}

	now := time.Now().UTC()
	row := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, name, image, kind, participants, admins, created_by, updated_by, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8, $8) RETURNING "+roomColumns,
		params.ExternalId,
		params.Name,
		params.Image,
		params.Kind,
		participants,
		admins,
		params.CreatedBy,
		now,
	)

	return scanRoom(row)
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (*types.Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms "+
			"WHERE external_id = $1 AND deleted = FALSE LIMIT 1",
		externalId,
	)

	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return room, err
}

func (db *PgChatRepository) FindDirectRoom(userA, userB string) (*types.Room, error) {
	pairA, err := json.Marshal([]map[string]string{{"userId": userA}})
	if err != nil {
		return nil, err
	}
	pairB, err := json.Marshal([]map[string]string{{"userId": userB}})
	if err != nil {
		return nil, err
	}

	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms "+
			"WHERE kind = $1 AND deleted = FALSE AND participants @> $2 AND participants @> $3 LIMIT 1",
		types.RoomKindDirect,
		pairA,
		pairB,
	)

	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return room, err
}

func (db *PgChatRepository) AddParticipants(roomId int, updatedBy string, participants []types.Participant) (*types.Room, error) {
	newElems, err := json.Marshal(participants)
	if err != nil {
		return nil, fmt.Errorf("encode participants: %w", err)
	}

	// The membership check in the room store and this append are separate
	// statements, so the update itself refuses to insert a userId that a
	// concurrent request already appended.
	row := db.conn.QueryRow(
		"UPDATE rooms SET participants = participants || $2::jsonb, updated_by = $3, updated_at = $4 "+
			"WHERE id = $1 AND deleted = FALSE "+
			"AND NOT EXISTS ("+
			"SELECT 1 FROM jsonb_array_elements($2::jsonb) AS elem "+
			"WHERE participants @> jsonb_build_array(jsonb_build_object('userId', elem->>'userId'))"+
			") RETURNING "+roomColumns,
		roomId,
		newElems,
		updatedBy,
		time.Now().UTC(),
	)

	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return room, err
}

func (db *PgChatRepository) ListRoomsByUser(userId string, status types.MembershipStatus) ([]types.Room, error) {
	match, err := json.Marshal([]map[string]string{{"userId": userId, "status": string(status)}})
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		"SELECT "+roomColumns+" FROM rooms "+
			"WHERE deleted = FALSE AND participants @> $1 ORDER BY updated_at DESC",
		match,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []types.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}

	return rooms, rows.Err()
}

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (*types.Message, error) {
	receipts := make([]types.Receipt, 0, len(params.RecipientIds))
	for _, id := range params.RecipientIds {
		receipts = append(receipts, types.Receipt{
			UserId: id,
			Status: types.ReceiptSent,
		})
	}

	encoded, err := json.Marshal(receipts)
	if err != nil {
		return nil, fmt.Errorf("encode receipts: %w", err)
	}

	row := db.conn.QueryRow(
		"WITH inserted AS ("+
			"INSERT INTO messages (room_id, sender_id, body, receipts, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING *"+
			") SELECT "+messageColumns+" FROM inserted m JOIN rooms r ON r.id = m.room_id",
		params.RoomId,
		params.SenderId,
		params.Body,
		encoded,
		time.Now().UTC(),
	)

	return scanMessage(row)
}

func (db *PgChatRepository) GetMessageById(id int) (*types.Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages m JOIN rooms r ON r.id = m.room_id "+
			"WHERE m.id = $1 AND m.deleted = FALSE LIMIT 1",
		id,
	)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

func (db *PgChatRepository) ListMessagesByRoom(roomExternalId string) ([]types.Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages m JOIN rooms r ON r.id = m.room_id "+
			"WHERE r.external_id = $1 AND m.deleted = FALSE ORDER BY m.id ASC",
		roomExternalId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, rows.Err()
}

func (db *PgChatRepository) LatestMessageByRoom(roomExternalId string) (*types.Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages m JOIN rooms r ON r.id = m.room_id "+
			"WHERE r.external_id = $1 AND m.deleted = FALSE ORDER BY m.id DESC LIMIT 1",
		roomExternalId,
	)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

func (db *PgChatRepository) CountUnseenByRoom(roomExternalId, userId string) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages m "+
			"JOIN rooms r ON r.id = m.room_id, jsonb_array_elements(m.receipts) AS rec "+
			"WHERE r.external_id = $1 AND m.deleted = FALSE "+
			"AND rec->>'userId' = $2 AND rec->>'status' <> $3 "+
			"AND COALESCE((rec->>'deleted')::bool, FALSE) = FALSE",
		roomExternalId,
		userId,
		types.ReceiptSeen,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}

// SetReceiptStatus rewrites the matching receipt element in place as a
// single row update. No matching message or receipt is a no-op; monotonicity
// is the delivery engine's concern, not the store's.
func (db *PgChatRepository) SetReceiptStatus(messageId int, userId string, status types.ReceiptStatus) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET receipts = ("+
			"SELECT COALESCE(jsonb_agg(CASE WHEN rec->>'userId' = $2 "+
			"THEN jsonb_set(rec, '{status}', to_jsonb($3::text)) ELSE rec END), '[]'::jsonb) "+
			"FROM jsonb_array_elements(receipts) AS rec"+
			") WHERE id = $1 AND deleted = FALSE",
		messageId,
		userId,
		status,
	)

	return err
}
