package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/audit"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/wire"
)

// handle dispatches one request and builds its reply. Clock discipline per
// request: merge the client's counter, tick for begin-processing, and tick
// once more when the reply (or published event) is emitted, so every reply
// carries a value greater than the request's.
func (c *Coordinator) handle(ctx context.Context, req *wire.Request) any {
	var meta requestMeta
	if len(req.Data) > 0 {
		// Best effort: a payload without meta fields is still dispatched and
		// rejected by the service handler if something required is missing.
		_ = json.Unmarshal(req.Data, &meta)
	}
	c.clock.Observe(meta.LamportClock)
	c.clock.Tick()

	log.Printf("[replica-%d|lamport=%d] processing service: %s", c.replicaID, c.clock.Now(), req.Service)

	switch req.Service {
	case ServiceListUsers:
		// Read-only: the raw id -> record collection, no Lamport stamping.
		return c.state.ListUsers()
	case ServiceListChannels:
		return c.state.ListChannels()
	case ServiceGetTime:
		return wire.TimeReply{
			ServerTimeUTC: c.now().UTC().Format(time.RFC3339),
			LamportClock:  c.clock.Tick(),
		}
	case ServiceAddUser:
		return c.addUser(ctx, req.Data)
	case ServiceLogin:
		return c.login(req.Data)
	case ServiceAddChannel, ServiceSubscribe, ServicePublish, ServiceMessage:
		user, errReply := c.authorize(ctx, meta)
		if errReply != nil {
			return errReply
		}
		switch req.Service {
		case ServiceAddChannel:
			return c.addChannel(ctx, req.Data)
		case ServiceSubscribe:
			return c.subscribe(ctx, user, req.Data)
		case ServicePublish:
			return c.publish(ctx, user, req)
		default:
			return c.message(ctx, user, req)
		}
	default:
		return c.errReply(unknownService(req.Service))
	}
}

// authorize resolves the caller for a protected operation: the bot bypass
// when configured, token validation otherwise. Bot-issued requests also
// trigger incremental reconciliation before the operation runs.
func (c *Coordinator) authorize(ctx context.Context, meta requestMeta) (string, any) {
	user, err := c.sessions.Authorize(meta.Token, meta.User)
	if err != nil {
		return "", c.errReply(unauthorized())
	}
	if c.sessions.IsBot(user) {
		if err := c.reconcileBot(ctx, user); err != nil {
			log.Printf("[replica-%d] bot reconciliation for %q failed: %v", c.replicaID, user, err)
		}
	}
	return user, nil
}

func (c *Coordinator) addUser(ctx context.Context, data json.RawMessage) any {
	var in credentials
	if err := decodeData(data, &in); err != nil {
		return c.errReply(err)
	}
	if in.User == "" || in.Senha == "" {
		return c.errReply(validationf("Usuario e senha sao obrigatorios."))
	}
	if _, exists := c.state.UserByName(in.User); exists {
		return c.errReply(conflictf("Usuario '%s' ja existe.", in.User))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Senha), bcrypt.DefaultCost)
	if err != nil {
		return c.errReply(err)
	}
	if err := c.state.AddUser(ctx, in.User, string(hash)); err != nil {
		return c.errReply(err)
	}
	return c.okReply()
}

func (c *Coordinator) login(data json.RawMessage) any {
	var in credentials
	if err := decodeData(data, &in); err != nil {
		return c.errReply(err)
	}
	user, found := c.state.UserByName(in.User)
	if !found || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Senha)) != nil {
		// One message for both cases; do not reveal whether the user exists.
		return c.errReply(&RequestError{Kind: KindUnauthorized, Message: "Usuario ou senha invalidos."})
	}
	token, err := c.sessions.Issue(user.Name)
	if err != nil {
		return c.errReply(err)
	}
	return wire.LoginReply{
		Status:       wire.StatusOK,
		Token:        token,
		User:         user.Name,
		LamportClock: c.clock.Tick(),
	}
}

func (c *Coordinator) addChannel(ctx context.Context, data json.RawMessage) any {
	var in addChannelData
	if err := decodeData(data, &in); err != nil {
		return c.errReply(err)
	}
	title := NormalizeTitle(in.Titulo)
	if title == "" {
		return c.errReply(validationf("Titulo do canal e obrigatorio."))
	}
	if c.state.HasChannel(title) {
		return c.errReply(conflictf("Canal '%s' ja existe.", title))
	}
	if err := c.state.AddChannel(ctx, title, in.Desc); err != nil {
		return c.errReply(err)
	}
	// A new channel must immediately appear in every bot's subscription set.
	if err := c.reconcileAllBots(ctx); err != nil {
		log.Printf("[replica-%d] bot reconciliation after addChannel failed: %v", c.replicaID, err)
	}
	return c.okReply()
}

func (c *Coordinator) subscribe(ctx context.Context, user string, data json.RawMessage) any {
	var in subscribeData
	if err := decodeData(data, &in); err != nil {
		return c.errReply(err)
	}
	title := NormalizeTitle(in.Channel)
	if !c.state.HasChannel(title) {
		return c.errReply(notFoundf("Canal '%s' nao existe.", title))
	}
	if err := c.state.Subscribe(ctx, user, title); err != nil {
		return c.errReply(err)
	}
	return c.okReplyMsg("%s inscrito em '%s'", user, title)
}

func (c *Coordinator) publish(ctx context.Context, user string, req *wire.Request) any {
	var in publishData
	if err := decodeData(req.Data, &in); err != nil {
		return c.errReply(err)
	}
	title := NormalizeTitle(in.Channel)
	if !c.state.HasChannel(title) {
		return c.errReply(notFoundf("Canal '%s' nao existe.", title))
	}
	if !c.state.IsSubscribed(user, title) {
		return c.errReply(forbiddenf("Usuario '%s' nao inscrito em '%s'.", user, title))
	}
	ev := wire.Event{
		User:         user,
		Message:      in.Message,
		Timestamp:    in.Timestamp,
		LamportClock: c.clock.Tick(), // the publish is itself a logical event
	}
	if err := c.publisher.Publish(ctx, title, ev); err != nil {
		return c.errReply(err)
	}
	c.appendAudit(ctx, req, ev.LamportClock)
	return c.okReply()
}

func (c *Coordinator) message(ctx context.Context, user string, req *wire.Request) any {
	var in messageData
	if err := decodeData(req.Data, &in); err != nil {
		return c.errReply(err)
	}
	if _, found := c.state.UserByName(in.Dst); !found {
		return c.errReply(notFoundf("Usuario '%s' nao existe.", in.Dst))
	}
	ev := wire.Event{
		From:         user,
		Message:      in.Message,
		Timestamp:    in.Timestamp,
		LamportClock: c.clock.Tick(),
	}
	// The destination user name is a per-user private topic.
	if err := c.publisher.Publish(ctx, in.Dst, ev); err != nil {
		return c.errReply(err)
	}
	c.appendAudit(ctx, req, ev.LamportClock)
	return c.okReply()
}

func (c *Coordinator) appendAudit(ctx context.Context, req *wire.Request, clock int64) {
	entry := audit.Entry{Service: req.Service, Data: req.Data, LamportClock: clock}
	if err := c.audit.Append(ctx, entry); err != nil {
		log.Printf("[replica-%d] failed to append audit record: %v", c.replicaID, err)
	}
}

func (c *Coordinator) okReply() wire.Reply {
	return wire.Reply{Status: wire.StatusOK, LamportClock: c.clock.Tick()}
}

func (c *Coordinator) okReplyMsg(format string, args ...any) wire.Reply {
	reply := c.okReply()
	reply.Message = fmt.Sprintf(format, args...)
	return reply
}

// errReply converts a request failure into a structured ERRO reply. Failures
// outside the taxonomy (persistence, relay, hashing) are internal: logged,
// reported generically, and never fatal to the processing loop.
func (c *Coordinator) errReply(err error) wire.Reply {
	message := "Erro interno no servidor."
	if reqErr, ok := err.(*RequestError); ok {
		message = reqErr.Message
	} else {
		log.Printf("[replica-%d] internal error serving request: %v", c.replicaID, err)
	}
	return wire.Reply{
		Status:       wire.StatusError,
		Message:      message,
		LamportClock: c.clock.Tick(),
	}
}
