package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/loorksy/ERPwhatsapp/internal/entities"

	"github.com/vincent-petithory/dataurl"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// WhatsAppClient is one tenant's linked WhatsApp device.
type WhatsAppClient struct {
	Client *whatsmeow.Client
	UserID int

	db     *sql.DB
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	state  *sessionState
	sink   EventSink
	onDown func(reason string)
}

func NewWhatsAppClient(ctx context.Context, dbPath string, userID int, sink EventSink) (*WhatsAppClient, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	container := sqlstore.NewWithDB(db, "sqlite", NewWALogger("Database"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to upgrade device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	clientCtx, cancel := context.WithCancel(context.Background())
	w := &WhatsAppClient{
		Client: whatsmeow.NewClient(deviceStore, NewWALogger(fmt.Sprintf("Client/user_%d", userID))),
		UserID: userID,
		db:     db,
		ctx:    clientCtx,
		cancel: cancel,
		state:  newSessionState(),
		sink:   sink,
	}
	w.Client.AddEventHandler(w.handleEvent)
	return w, nil
}

// Connect opens the socket. Unpaired devices get a QR channel first.
func (w *WhatsAppClient) Connect() error {
	w.transition(entities.SessionInitializing)

	if !w.IsLoggedIn() {
		qrChan, err := w.Client.GetQRChannel(w.ctx)
		if err != nil {
			return fmt.Errorf("failed to open qr channel: %w", err)
		}
		if err := w.Client.Connect(); err != nil {
			return err
		}
		go w.watchQR(qrChan)
		return nil
	}

	if err := w.Client.Connect(); err != nil {
		return err
	}
	zap.L().Info("whatsapp: connecting existing session", zap.Int("user_id", w.UserID))
	return nil
}

func (w *WhatsAppClient) watchQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch {
		case item.Event == whatsmeow.QRChannelEventCode:
			w.mu.Lock()
			ok := w.state.setQR(item.Code)
			w.mu.Unlock()
			if ok && w.sink != nil {
				w.sink.OnQR(w.UserID, item.Code)
			}
		case item.Event == "success":
			zap.L().Info("whatsapp: qr pairing succeeded", zap.Int("user_id", w.UserID))
		case item.Event == "timeout":
			w.markDown(entities.ReasonQRTimeout)
		case strings.HasPrefix(item.Event, "err"):
			zap.L().Warn("whatsapp: qr channel failed", zap.Int("user_id", w.UserID),
				zap.String("event", item.Event), zap.Error(item.Error))
			w.markDown(entities.ReasonAuthFailure)
		}
	}
}

func (w *WhatsAppClient) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.PairSuccess:
		if w.sink != nil {
			w.sink.OnAuthenticated(w.UserID, v.ID.User)
		}
	case *events.Connected:
		phone := w.GetPhoneNumber()
		w.mu.Lock()
		ok := w.state.setReady(phone)
		w.mu.Unlock()
		if ok && w.sink != nil {
			w.sink.OnReady(w.UserID, phone)
		}
	case *events.Message:
		msg, ok := ParseInbound(v)
		if !ok {
			return
		}
		if w.sink == nil {
			return
		}
		if msg.MediaType == "" {
			w.sink.OnMessage(w.UserID, msg)
			return
		}
		go func() {
			msg.MediaURL = w.downloadMedia(v.Message)
			w.sink.OnMessage(w.UserID, msg)
		}()
	case *events.LoggedOut:
		if v.OnConnect {
			w.markDown(entities.ReasonAuthFailure)
		} else {
			w.markDown(entities.ReasonLoggedOut)
		}
	case *events.ConnectFailure:
		zap.L().Warn("whatsapp: connect failure", zap.Int("user_id", w.UserID), zap.String("reason", v.Reason.String()))
		w.markDown(entities.ReasonAuthFailure)
	case *events.TemporaryBan:
		w.markDown(entities.ReasonAuthFailure)
	case *events.StreamReplaced:
		w.markDown(entities.ReasonConnection)
	case *events.Disconnected:
		// whatsmeow reconnects on its own
		zap.L().Debug("whatsapp: socket dropped", zap.Int("user_id", w.UserID))
	}
}

// markDown moves the session to disconnected once and reports the reason.
func (w *WhatsAppClient) markDown(reason string) {
	w.mu.Lock()
	ok := w.state.setDisconnected()
	onDown := w.onDown
	w.mu.Unlock()
	if !ok {
		return
	}
	zap.L().Warn("whatsapp: session disconnected", zap.Int("user_id", w.UserID), zap.String("reason", reason))
	if onDown != nil {
		onDown(reason)
	}
}

func (w *WhatsAppClient) transition(status string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.set(status)
}

func (w *WhatsAppClient) Status() entities.SessionStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state.snapshot()
}

func (w *WhatsAppClient) GetQR() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state.qr
}

// IsLoggedIn reports whether the device store holds a paired identity.
func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

func (w *WhatsAppClient) GetPhoneNumber() string {
	if !w.IsLoggedIn() {
		return ""
	}
	return w.Client.Store.ID.User
}

// Logout unlinks the device on the phone side.
func (w *WhatsAppClient) Logout(ctx context.Context) error {
	if !w.IsLoggedIn() {
		return nil
	}
	return w.Client.Logout(ctx)
}

// close tears down the socket and the device database.
func (w *WhatsAppClient) close() {
	w.cancel()
	w.Client.Disconnect()
	if err := w.db.Close(); err != nil {
		zap.L().Debug("whatsapp: closing device store", zap.Int("user_id", w.UserID), zap.Error(err))
	}
}

// SendText delivers a plain text message and returns the WhatsApp message id.
func (w *WhatsAppClient) SendText(ctx context.Context, phone, content string) (string, error) {
	if !w.Status().IsReady {
		return "", ErrSessionNotReady
	}
	jid := types.NewJID(phone, types.DefaultUserServer)
	resp, err := w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: proto.String(content),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return string(resp.ID), nil
}

// ParseInbound converts a whatsmeow message event into the intake shape.
// Group chats, broadcasts and protocol-only messages are skipped.
func ParseInbound(evt *events.Message) (entities.InboundMessage, bool) {
	if evt.Message == nil || evt.Info.IsGroup || evt.Info.Chat.Server == types.BroadcastServer {
		return entities.InboundMessage{}, false
	}

	body, mediaType := extractContent(evt.Message)
	if body == "" && mediaType == "" {
		return entities.InboundMessage{}, false
	}

	sender := evt.Info.Sender
	if sender.Server == types.HiddenUserServer && evt.Info.SenderAlt.User != "" {
		sender = evt.Info.SenderAlt
	}

	ts := evt.Info.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return entities.InboundMessage{
		ExternalID: evt.Info.ID,
		From:       sender.User,
		To:         evt.Info.Chat.User,
		FromMe:     evt.Info.IsFromMe,
		PushName:   evt.Info.PushName,
		Body:       body,
		MediaType:  mediaType,
		Timestamp:  ts,
	}, true
}

// maxInlineMedia bounds media stored inline as a data URL.
const maxInlineMedia = 5 << 20

func mediaOf(msg *waProto.Message) (whatsmeow.DownloadableMessage, string, uint64) {
	switch {
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return m, m.GetMimetype(), m.GetFileLength()
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return m, m.GetMimetype(), m.GetFileLength()
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		return m, m.GetMimetype(), m.GetFileLength()
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		return m, m.GetMimetype(), m.GetFileLength()
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return m, m.GetMimetype(), m.GetFileLength()
	}
	return nil, "", 0
}

// downloadMedia fetches an attachment as a data URL; failures and oversized files yield "".
func (w *WhatsAppClient) downloadMedia(msg *waProto.Message) string {
	media, mimetype, size := mediaOf(msg)
	if media == nil || size > maxInlineMedia {
		return ""
	}
	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	data, err := w.Client.Download(ctx, media)
	if err != nil {
		zap.L().Warn("whatsapp: media download failed", zap.Int("user_id", w.UserID), zap.Error(err))
		return ""
	}
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}
	return dataurl.New(data, mimetype).String()
}

func extractContent(msg *waProto.Message) (string, string) {
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation(), ""
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetText(), ""
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption(), "image"
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption(), "video"
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption(), "document"
	case msg.GetAudioMessage() != nil:
		return "", "audio"
	case msg.GetStickerMessage() != nil:
		return "", "sticker"
	}
	return "", ""
}
