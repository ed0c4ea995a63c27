package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/audit"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/relay"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/session"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/internal/store"
	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/wire"
)

// recordingAudit captures audit entries in memory.
type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Append(ctx context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) Entries() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

type fixture struct {
	coord   *Coordinator
	bus     *relay.MemoryBus
	gateway *store.MemoryGateway
	audit   *recordingAudit
}

func newFixture(t *testing.T, botPrefixes []string) *fixture {
	t.Helper()
	bus := relay.NewMemoryBus()
	gateway := store.NewMemoryGateway()
	sessions, err := session.NewManager("test-secret", time.Hour, botPrefixes)
	require.NoError(t, err)
	rec := &recordingAudit{}

	coord, err := New(1, gateway, bus, sessions, rec)
	require.NoError(t, err)
	require.NoError(t, coord.OnElected(context.Background()))
	t.Cleanup(coord.OnDemoted)

	return &fixture{coord: coord, bus: bus, gateway: gateway, audit: rec}
}

// call enqueues one request, drains it through Step and decodes the reply.
func (f *fixture) call(t *testing.T, service string, data any, reply any) {
	t.Helper()
	require.NoError(t, f.bus.EnqueueRequest(service, data))
	processed, err := f.coord.Step(context.Background())
	require.NoError(t, err)
	require.True(t, processed, "expected a request to be processed")
	require.NoError(t, f.bus.LastReply(reply))
}

func (f *fixture) mustOK(t *testing.T, service string, data any) wire.Reply {
	t.Helper()
	var reply wire.Reply
	f.call(t, service, data, &reply)
	require.Equal(t, wire.StatusOK, reply.Status, "service %s replied: %s", service, reply.Message)
	return reply
}

func (f *fixture) mustErr(t *testing.T, service string, data any) wire.Reply {
	t.Helper()
	var reply wire.Reply
	f.call(t, service, data, &reply)
	require.Equal(t, wire.StatusError, reply.Status, "service %s unexpectedly succeeded", service)
	return reply
}

func (f *fixture) register(t *testing.T, user, password string) string {
	t.Helper()
	f.mustOK(t, ServiceAddUser, map[string]string{"user": user, "senha": password})
	var login wire.LoginReply
	f.call(t, ServiceLogin, map[string]string{"user": user, "senha": password}, &login)
	require.Equal(t, wire.StatusOK, login.Status)
	require.NotEmpty(t, login.Token)
	return login.Token
}

func TestCoordinator_PublishFlow(t *testing.T) {
	f := newFixture(t, nil)

	token := f.register(t, "alice", "s3cret")
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "General"})
	f.mustOK(t, ServiceSubscribe, map[string]string{"token": token, "channel": "general"})
	f.mustOK(t, ServicePublish, map[string]string{
		"token":     token,
		"channel":   "general",
		"message":   "hello",
		"timestamp": "2025-01-01T00:00:00Z",
	})

	events, err := f.bus.Published("general")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].User)
	assert.Empty(t, events[0].From)
	assert.Equal(t, "hello", events[0].Message)
	assert.Positive(t, events[0].LamportClock)
}

func TestCoordinator_AddUserValidation(t *testing.T) {
	f := newFixture(t, nil)

	reply := f.mustErr(t, ServiceAddUser, map[string]string{"user": "", "senha": ""})
	assert.Equal(t, "Usuario e senha sao obrigatorios.", reply.Message)

	f.mustOK(t, ServiceAddUser, map[string]string{"user": "alice", "senha": "x"})
	reply = f.mustErr(t, ServiceAddUser, map[string]string{"user": "alice", "senha": "y"})
	assert.Equal(t, "Usuario 'alice' ja existe.", reply.Message)
}

func TestCoordinator_LoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t, nil)
	f.mustOK(t, ServiceAddUser, map[string]string{"user": "alice", "senha": "right"})

	// Wrong password and unknown user must yield the same message.
	wrongPass := f.mustErr(t, ServiceLogin, map[string]string{"user": "alice", "senha": "wrong"})
	unknown := f.mustErr(t, ServiceLogin, map[string]string{"user": "ghost", "senha": "x"})
	assert.Equal(t, "Usuario ou senha invalidos.", wrongPass.Message)
	assert.Equal(t, wrongPass.Message, unknown.Message)
}

func TestCoordinator_ProtectedServicesRequireToken(t *testing.T) {
	f := newFixture(t, nil)

	for _, service := range []string{ServiceAddChannel, ServiceSubscribe, ServicePublish, ServiceMessage} {
		reply := f.mustErr(t, service, map[string]string{"titulo": "c", "channel": "c", "dst": "x"})
		assert.Equal(t, "Token invalido ou expirado. Faca login novamente.", reply.Message, "service %s", service)
	}
}

func TestCoordinator_RejectsForgedToken(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice", "x")

	reply := f.mustErr(t, ServiceAddChannel, map[string]string{"token": "forged", "titulo": "c"})
	assert.Equal(t, "Token invalido ou expirado. Faca login novamente.", reply.Message)
}

func TestCoordinator_ChannelLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	token := f.register(t, "alice", "x")

	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "  Dev  "})

	// Titles normalize: case and surrounding whitespace never split a channel.
	reply := f.mustErr(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "DEV"})
	assert.Equal(t, "Canal 'dev' ja existe.", reply.Message)

	reply = f.mustErr(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "   "})
	assert.Equal(t, "Titulo do canal e obrigatorio.", reply.Message)
}

func TestCoordinator_SubscribeUnknownChannel(t *testing.T) {
	f := newFixture(t, nil)
	token := f.register(t, "alice", "x")

	reply := f.mustErr(t, ServiceSubscribe, map[string]string{"token": token, "channel": "nowhere"})
	assert.Equal(t, "Canal 'nowhere' nao existe.", reply.Message)
}

func TestCoordinator_PublishRequiresSubscription(t *testing.T) {
	f := newFixture(t, nil)
	token := f.register(t, "alice", "x")
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "general"})

	reply := f.mustErr(t, ServicePublish, map[string]string{"token": token, "channel": "general", "message": "hi"})
	assert.Equal(t, "Usuario 'alice' nao inscrito em 'general'.", reply.Message)

	reply = f.mustErr(t, ServicePublish, map[string]string{"token": token, "channel": "void", "message": "hi"})
	assert.Equal(t, "Canal 'void' nao existe.", reply.Message)
}

func TestCoordinator_DirectMessage(t *testing.T) {
	f := newFixture(t, nil)
	tokenAlice := f.register(t, "alice", "x")
	f.register(t, "bob", "y")

	f.mustOK(t, ServiceMessage, map[string]string{
		"token":     tokenAlice,
		"dst":       "bob",
		"message":   "oi",
		"timestamp": "t",
	})

	events, err := f.bus.Published("bob")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].From)
	assert.Empty(t, events[0].User)

	reply := f.mustErr(t, ServiceMessage, map[string]string{"token": tokenAlice, "dst": "ghost", "message": "oi"})
	assert.Equal(t, "Usuario 'ghost' nao existe.", reply.Message)
}

func TestCoordinator_ListServicesReturnRawCollections(t *testing.T) {
	f := newFixture(t, nil)
	token := f.register(t, "alice", "x")
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "general", "desc": "main room"})

	var users map[string]User
	f.call(t, ServiceListUsers, map[string]string{}, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users["0"].Name)

	var channels map[string]Channel
	f.call(t, ServiceListChannels, map[string]string{}, &channels)
	require.Len(t, channels, 1)
	assert.Equal(t, "general", channels["0"].Title)
	assert.Equal(t, "main room", channels["0"].Desc)
}

func TestCoordinator_GetTime(t *testing.T) {
	f := newFixture(t, nil)

	var reply wire.TimeReply
	f.call(t, ServiceGetTime, map[string]string{}, &reply)

	parsed, err := time.Parse(time.RFC3339, reply.ServerTimeUTC)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
	assert.Positive(t, reply.LamportClock)
}

func TestCoordinator_UnknownService(t *testing.T) {
	f := newFixture(t, nil)

	reply := f.mustErr(t, "dropTables", map[string]string{})
	assert.Equal(t, "Servico 'dropTables' nao reconhecido.", reply.Message)
}

func TestCoordinator_LamportMonotonicAcrossReplies(t *testing.T) {
	f := newFixture(t, nil)

	var last int64
	for i := 0; i < 5; i++ {
		var reply wire.TimeReply
		f.call(t, ServiceGetTime, map[string]string{}, &reply)
		require.Greater(t, reply.LamportClock, last)
		last = reply.LamportClock
	}
}

func TestCoordinator_LamportMergesClientClock(t *testing.T) {
	f := newFixture(t, nil)

	var reply wire.TimeReply
	f.call(t, ServiceGetTime, map[string]any{"lamport_clock": 1000}, &reply)
	assert.Greater(t, reply.LamportClock, int64(1000), "reply clock must dominate the request's")
}

func TestCoordinator_BotBypassAndReconciliation(t *testing.T) {
	f := newFixture(t, []string{"bot-"})
	token := f.register(t, "alice", "x")
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "general"})

	// A tokenless bot request is authorized and materializes the bot's
	// subscription to every existing channel before the operation runs.
	f.mustOK(t, ServicePublish, map[string]string{
		"user":    "bot-clima",
		"channel": "general",
		"message": "25C",
	})

	events, err := f.bus.Published("general")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "bot-clima", events[0].User)
}

func TestCoordinator_NewChannelExtendsKnownBots(t *testing.T) {
	f := newFixture(t, []string{"bot-"})
	token := f.register(t, "alice", "x")
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "general"})

	// Make the bot known through one request, then add a second channel.
	f.mustOK(t, ServicePublish, map[string]string{"user": "bot-1", "channel": "general", "message": "a"})
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "alerts"})

	// The bot can publish to the new channel without ever subscribing.
	f.mustOK(t, ServicePublish, map[string]string{"user": "bot-1", "channel": "alerts", "message": "b"})
}

func TestCoordinator_AuditRecordsFanOutOnly(t *testing.T) {
	f := newFixture(t, nil)
	token := f.register(t, "alice", "x")
	f.register(t, "bob", "y")
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "general"})
	f.mustOK(t, ServiceSubscribe, map[string]string{"token": token, "channel": "general"})

	require.Empty(t, f.audit.Entries(), "control-plane requests must not be audited")

	f.mustOK(t, ServicePublish, map[string]string{"token": token, "channel": "general", "message": "m1"})
	f.mustOK(t, ServiceMessage, map[string]string{"token": token, "dst": "bob", "message": "m2"})

	entries := f.audit.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ServicePublish, entries[0].Service)
	assert.Equal(t, ServiceMessage, entries[1].Service)
	assert.Positive(t, entries[0].LamportClock)
}

func TestCoordinator_StateSurvivesLeadershipTerms(t *testing.T) {
	f := newFixture(t, nil)
	token := f.register(t, "alice", "x")
	f.mustOK(t, ServiceAddChannel, map[string]string{"token": token, "titulo": "general"})
	f.mustOK(t, ServiceSubscribe, map[string]string{"token": token, "channel": "general"})

	// Demote and re-elect: the gateway is the durable source of truth.
	f.coord.OnDemoted()
	f.bus = relay.NewMemoryBus()
	f.coord.dialer = f.bus
	require.NoError(t, f.coord.OnElected(context.Background()))

	f.mustOK(t, ServicePublish, map[string]string{"token": token, "channel": "general", "message": "back"})

	events, err := f.bus.Published("general")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "back", events[0].Message)
}

func TestCoordinator_StepIdleWithoutRequests(t *testing.T) {
	f := newFixture(t, nil)

	processed, err := f.coord.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestCoordinator_MalformedPayloadRejected(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.bus.EnqueueRequest(ServiceAddUser, json.RawMessage(`"not-an-object"`)))
	processed, err := f.coord.Step(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	var reply wire.Reply
	require.NoError(t, f.bus.LastReply(&reply))
	assert.Equal(t, wire.StatusError, reply.Status)
	assert.Equal(t, "Dados invalidos.", reply.Message)
}
