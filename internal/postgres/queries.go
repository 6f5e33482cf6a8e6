package postgres

const (
	conversationColumns = `id, landlord_id, tenant_id, property_id, created_at, updated_at`

	qConversationByID = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1`

	qConversationByParties = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE landlord_id = $1 AND tenant_id = $2 AND property_id = $3`

	qLatestConversationBetween = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE landlord_id = $1 AND tenant_id = $2
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`

	qInsertConversation = `
		INSERT INTO conversations (landlord_id, tenant_id, property_id)
		VALUES ($1, $2, $3)
		RETURNING ` + conversationColumns

	qTouchConversation = `
		UPDATE conversations
		SET updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
)

const (
	messageColumns = `id, conversation_id, sender_id, body, kind, state, created_at`

	// Inserting a message also bumps the conversation so lists by updated_at stay fresh.
	qInsertMessage = `
		WITH ins AS (
			INSERT INTO messages (conversation_id, sender_id, body, kind, state)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + messageColumns + `
		), touch AS (
			UPDATE conversations SET updated_at = now() WHERE id = $1
		)
		SELECT ` + messageColumns + ` FROM ins`

	qMessageByID = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = $1`

	// state only ever moves forward; a lower or equal target matches no row.
	qAdvanceMessage = `
		UPDATE messages
		SET state = $2
		WHERE id = $1 AND state < $2
		RETURNING ` + messageColumns

	qMarkConversationRead = `
		UPDATE messages
		SET state = 3
		WHERE conversation_id = $1 AND sender_id <> $2 AND state < 3
		RETURNING id`

	qListMessages = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4`
)

const (
	qPropertyLandlord = `SELECT landlord_id FROM properties WHERE id = $1`

	qUserName = `SELECT name FROM users WHERE id = $1`
)
