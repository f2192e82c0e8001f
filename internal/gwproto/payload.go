package gwproto

// HelloPayload is the OP_HELLO body.
type HelloPayload struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Opcode implements Payload.
func (HelloPayload) Opcode() Opcode { return OpHello }

// IdentifyProperties is the (always-empty) properties bag sent with
// IDENTIFY.
type IdentifyProperties struct{}

// IdentifyPayload is the OP_IDENTIFY body.
type IdentifyPayload struct {
	Token      string             `json:"token"`
	Intents    int64              `json:"intents"`
	Shard      [2]int             `json:"shard"`
	Properties IdentifyProperties `json:"properties"`
}


// Opcode implements Payload.
func (IdentifyPayload) Opcode() Opcode { return OpIdentify }

// ResumePayload is the OP_RESUME body.
type ResumePayload struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Opcode implements Payload.
func (ResumePayload) Opcode() Opcode { return OpResume }

// HeartbeatPayload is the OP_HEARTBEAT body; it carries no data of its
// own but needs a concrete type to satisfy Payload.
type HeartbeatPayload struct{}

// Opcode implements Payload.
func (HeartbeatPayload) Opcode() Opcode { return OpHeartbeat }

// ReadyUser is the bot's own user object, echoed back in READY.
type ReadyUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// ReadyPayload is the DISPATCH/READY body.
type ReadyPayload struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	User      ReadyUser `json:"user"`
	Shard     [2]int    `json:"shard"`
}

// Opcode implements Payload. READY arrives as a DISPATCH envelope; the
// opcode match is validated by the caller against event_type rather than
// through Decode, since READY shares the DISPATCH opcode with every other
// event type.
func (ReadyPayload) Opcode() Opcode { return OpDispatch }

// AtMessageAuthor identifies the sender of an at-message.
type AtMessageAuthor struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// AtMessageMember carries the guild-member metadata QQ attaches to
// AT_MESSAGE_CREATE; the controller doesn't need it but the gateway
// still round-trips it faithfully.
type AtMessageMember struct {
	JoinedAt string   `json:"joined_at"`
	Roles    []string `json:"roles,omitempty"`
}

// AtMessageCreatePayload is the AT_MESSAGE_CREATE dispatch body.
type AtMessageCreatePayload struct {
	ID        string          `json:"id"`
	ChannelID string          `json:"channel_id"`
	GuildID   string          `json:"guild_id"`
	Content   string          `json:"content"`
	Author    AtMessageAuthor `json:"author"`
	Member    AtMessageMember `json:"member"`
	Timestamp string          `json:"timestamp"`
	Seq       int64           `json:"seq"`
}

// Opcode implements Payload.
func (AtMessageCreatePayload) Opcode() Opcode { return OpDispatch }

// WebhookChallengePayload is the HTTP_CALLBACK_CHALLENGE request body.
type WebhookChallengePayload struct {
	PlainToken string `json:"plain_token"`
	EventTS    string `json:"event_ts"`
}

// Opcode implements Payload.
func (WebhookChallengePayload) Opcode() Opcode { return OpHTTPCallbackChallenge }

// WebhookChallengeResponsePayload is the signed reply to a challenge.
type WebhookChallengeResponsePayload struct {
	PlainToken string `json:"plain_token"`
	Signature  string `json:"signature"`
}
