package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GabrielBalbine/ProjetoSistemasDistribuidos/pkg/store"
)

// User is a registered identity. Users are never mutated after creation and
// never deleted.
type User struct {
	Name         string `json:"user"`
	PasswordHash string `json:"password_hash"`
}

// Channel is a named publication topic. Titles are stored normalized
// (lowercase, trimmed) and are unique.
type Channel struct {
	Title string `json:"titulo"`
	Desc  string `json:"desc"`
}

// NormalizeTitle applies the canonical channel-title form used for
// uniqueness, lookup and topic routing.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// State holds the collections the leader mutates: users, channels and
// subscription sets. It is owned exclusively by the active coordinator and
// reloaded from the persistence gateway on every leadership acquisition;
// nothing is carried across transitions in memory.
type State struct {
	gateway store.Gateway

	users         map[string]User     // id -> user
	channels      map[string]Channel  // id -> channel
	subscriptions map[string][]string // user name -> channel titles

	nextUserID    int
	nextChannelID int
}

// LoadState reads all collections from the gateway and resumes the id
// counters past the highest persisted ids.
func LoadState(ctx context.Context, gateway store.Gateway) (*State, error) {
	s := &State{
		gateway:       gateway,
		users:         make(map[string]User),
		channels:      make(map[string]Channel),
		subscriptions: make(map[string][]string),
	}

	rawUsers, err := gateway.Load(ctx, store.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for id, raw := range rawUsers {
		var u User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("failed to decode user %q: %w", id, err)
		}
		s.users[id] = u
	}
	s.nextUserID = nextID(rawUsers)

	rawChannels, err := gateway.Load(ctx, store.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to load channels: %w", err)
	}
	for id, raw := range rawChannels {
		var c Channel
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode channel %q: %w", id, err)
		}
		s.channels[id] = c
	}
	s.nextChannelID = nextID(rawChannels)

	rawSubs, err := gateway.Load(ctx, store.Subscriptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	for name, raw := range rawSubs {
		var titles []string
		if err := json.Unmarshal(raw, &titles); err != nil {
			return nil, fmt.Errorf("failed to decode subscriptions for %q: %w", name, err)
		}
		s.subscriptions[name] = titles
	}

	return s, nil
}

func nextID(raw map[string]json.RawMessage) int {
	next := 0
	for id := range raw {
		if n, err := strconv.Atoi(id); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

// UserByName looks a user up by name.
func (s *State) UserByName(name string) (User, bool) {
	for _, u := range s.users {
		if u.Name == name {
			return u, true
		}
	}
	return User{}, false
}

// AddUser creates and persists a new user record.
func (s *State) AddUser(ctx context.Context, name, passwordHash string) error {
	id := strconv.Itoa(s.nextUserID)
	s.users[id] = User{Name: name, PasswordHash: passwordHash}
	s.nextUserID++
	if err := s.saveUsers(ctx); err != nil {
		// Roll back so a failed write does not leave phantom state.
		delete(s.users, id)
		s.nextUserID--
		return err
	}
	return nil
}

// HasChannel reports whether a channel with the normalized title exists.
func (s *State) HasChannel(title string) bool {
	for _, c := range s.channels {
		if c.Title == title {
			return true
		}
	}
	return false
}

// AddChannel creates and persists a new channel record. The title must
// already be normalized.
func (s *State) AddChannel(ctx context.Context, title, desc string) error {
	id := strconv.Itoa(s.nextChannelID)
	s.channels[id] = Channel{Title: title, Desc: desc}
	s.nextChannelID++
	if err := s.saveChannels(ctx); err != nil {
		delete(s.channels, id)
		s.nextChannelID--
		return err
	}
	return nil
}

// ChannelTitles returns the normalized titles of all known channels.
func (s *State) ChannelTitles() []string {
	titles := make([]string, 0, len(s.channels))
	for _, c := range s.channels {
		titles = append(titles, c.Title)
	}
	sort.Strings(titles)
	return titles
}

// IsSubscribed reports whether the user's subscription set contains the
// normalized title.
func (s *State) IsSubscribed(user, title string) bool {
	for _, t := range s.subscriptions[user] {
		if t == title {
			return true
		}
	}
	return false
}

// Subscribe adds the title to the user's subscription set and persists the
// change. Subscribing to an already-present title is a no-op and does not
// rewrite the collection.
func (s *State) Subscribe(ctx context.Context, user, title string) error {
	if s.IsSubscribed(user, title) {
		return nil
	}
	s.subscriptions[user] = append(s.subscriptions[user], title)
	if err := s.saveSubscriptions(ctx); err != nil {
		titles := s.subscriptions[user]
		s.subscriptions[user] = titles[:len(titles)-1]
		return err
	}
	return nil
}

// ExtendSubscriptions appends every missing title to the user's set,
// persisting only when something changed. It returns whether a write
// happened. An empty missing set still materializes the user's (empty)
// subscription entry, since presence with an empty set is distinct from
// absence.
func (s *State) ExtendSubscriptions(ctx context.Context, user string, titles []string) (bool, error) {
	changed := false
	if _, ok := s.subscriptions[user]; !ok {
		s.subscriptions[user] = []string{}
		changed = true
	}
	for _, title := range titles {
		if !s.IsSubscribed(user, title) {
			s.subscriptions[user] = append(s.subscriptions[user], title)
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	if err := s.saveSubscriptions(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SubscriberNames returns every identity with a subscription entry, including
// empty sets.
func (s *State) SubscriberNames() []string {
	names := make([]string, 0, len(s.subscriptions))
	for name := range s.subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListUsers returns a copy of the user collection keyed by id.
func (s *State) ListUsers() map[string]User {
	out := make(map[string]User, len(s.users))
	for id, u := range s.users {
		out[id] = u
	}
	return out
}

// ListChannels returns a copy of the channel collection keyed by id.
func (s *State) ListChannels() map[string]Channel {
	out := make(map[string]Channel, len(s.channels))
	for id, c := range s.channels {
		out[id] = c
	}
	return out
}

func (s *State) saveUsers(ctx context.Context) error {
	data := make(map[string]json.RawMessage, len(s.users))
	for id, u := range s.users {
		raw, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to encode user %q: %w", id, err)
		}
		data[id] = raw
	}
	if err := s.gateway.Save(ctx, store.Users, data); err != nil {
		return fmt.Errorf("failed to persist users: %w", err)
	}
	return nil
}

func (s *State) saveChannels(ctx context.Context) error {
	data := make(map[string]json.RawMessage, len(s.channels))
	for id, c := range s.channels {
		raw, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode channel %q: %w", id, err)
		}
		data[id] = raw
	}
	if err := s.gateway.Save(ctx, store.Channels, data); err != nil {
		return fmt.Errorf("failed to persist channels: %w", err)
	}
	return nil
}

func (s *State) saveSubscriptions(ctx context.Context) error {
	data := make(map[string]json.RawMessage, len(s.subscriptions))
	for name, titles := range s.subscriptions {
		raw, err := json.Marshal(titles)
		if err != nil {
			return fmt.Errorf("failed to encode subscriptions for %q: %w", name, err)
		}
		data[name] = raw
	}
	if err := s.gateway.Save(ctx, store.Subscriptions, data); err != nil {
		return fmt.Errorf("failed to persist subscriptions: %w", err)
	}
	return nil
}
