package types

import "encoding/json"

// Client -> Server frame types.
const (
	CmSubscribe            = "subscribe"
	CmImpersonationRequest = "story.impersonation.request"
	CmImpersonationRespond = "story.impersonation.respond"
	CmTradeStart           = "trade.start"
	CmTradeRespond         = "trade.respond"
	CmTradeUpdate          = "trade.update"
	CmTradeConfirm         = "trade.confirm"
	CmTradeUnconfirm       = "trade.unconfirm"
	CmTradeCancel          = "trade.cancel"
	CmMusicPlay            = "music.play"
	CmMusicStop            = "music.stop"
	CmAlertBroadcast       = "alert.broadcast"
)

// Server -> Client frame types.
const (
	SvWelcome             = "welcome"
	SvStoryUpdate         = "story:update"
	SvImpersonationPrompt = "story:impersonation_prompt"
	SvImpersonationStatus = "story:impersonation_status"
	SvTradeInvite         = "trade:invite"
	SvTradeActive         = "trade:active"
	SvTradeUpdate         = "trade:update"
	SvTradeCancelled      = "trade:cancelled"
	SvTradeCompleted      = "trade:completed"
	SvTradeError          = "trade:error"
	SvMusicState          = "music:state"
	SvMusicError          = "music:error"
	SvAlertShow           = "alert:show"
	SvAlertError          = "alert:error"
	SvGameUpdate          = "game:update"
	SvGameDeleted         = "game:deleted"
	SvPresenceState       = "presence:state"
	SvPresenceUpdate      = "presence:update"
	SvError               = "error"
)

// Subscription channels declared after every (re)connect.
var Channels = []string{"story", "trade", "game"}

// TradeItem is one entry in a trade offer.
type TradeItem struct {
	ItemID string `json:"itemId"`
	Count  int    `json:"count"`
}

// ClientFrame is the outbound envelope. One struct covers every client
// command; unused fields stay off the wire via omitempty. Approve and
// Accept are pointers so an explicit false survives marshalling.
type ClientFrame struct {
	Type         string      `json:"type"`
	Channel      string      `json:"channel,omitempty"`
	GameID       string      `json:"gameId,omitempty"`
	TargetUserID string      `json:"targetUserId,omitempty"`
	Content      string      `json:"content,omitempty"`
	Nonce        string      `json:"nonce,omitempty"`
	RequestID    string      `json:"requestId,omitempty"`
	Approve      *bool       `json:"approve,omitempty"`
	PartnerID    string      `json:"partnerId,omitempty"`
	Note         string      `json:"note,omitempty"`
	TradeID      string      `json:"tradeId,omitempty"`
	Items        []TradeItem `json:"items,omitempty"`
	Accept       *bool       `json:"accept,omitempty"`
	TrackID      string      `json:"trackId,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// ImpersonationRequest is the prompt shown to the impersonated player.
type ImpersonationRequest struct {
	ID         string `json:"id"`
	GameID     string `json:"gameId"`
	FromUserID string `json:"fromUserId,omitempty"`
	FromName   string `json:"fromName,omitempty"`
	Content    string `json:"content,omitempty"`
}

// ImpersonationStatus reports the outcome of an impersonation request.
type ImpersonationStatus struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// MusicInfo references a track in the shared catalog.
type MusicInfo struct {
	TrackID   string `json:"trackId"`
	UpdatedAt int64  `json:"updatedAt,omitempty"` // unix millis
}

// AlertInfo is a broadcast notice as it arrives off the wire.
type AlertInfo struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	SenderName string `json:"senderName,omitempty"`
	IssuedAt   int64  `json:"issuedAt,omitempty"` // unix millis
	SenderID   string `json:"senderId,omitempty"`
}

// ServerFrame is the inbound envelope. Trade payloads stay untyped so
// partial updates can be merged field by field; Online is raw because
// presence:state carries a list where presence:update carries a bool.
type ServerFrame struct {
	Type        string                `json:"type"`
	GameID      string                `json:"gameId,omitempty"`
	Snapshot    json.RawMessage       `json:"snapshot,omitempty"`
	Request     *ImpersonationRequest `json:"request,omitempty"`
	Nonce       string                `json:"nonce,omitempty"`
	RequestID   string                `json:"requestId,omitempty"`
	Status      string                `json:"status,omitempty"`
	Message     string                `json:"message,omitempty"`
	Trade       map[string]any        `json:"trade,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	InitiatedBy string                `json:"initiatedBy,omitempty"`
	Music       *MusicInfo            `json:"music,omitempty"`
	Alert       *AlertInfo            `json:"alert,omitempty"`
	Online      json.RawMessage       `json:"online,omitempty"`
	UserID      string                `json:"userId,omitempty"`
	Error       string                `json:"error,omitempty"`
}
