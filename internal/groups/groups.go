// Package groups manages the locally stored member groups that unlock
// group-only discounts.
package groups

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
	"github.com/MiKapsDev/Lion-City/internal/notify"
)

// StorageKey is the store key holding the JSON group list.
const StorageKey = "groups"

const idPrefix = "group-"

var (
	// ErrInvalidGroup is returned when a group name or member list fails validation.
	ErrInvalidGroup = errors.New("invalid group")
	// ErrInvalidEmail is returned for a malformed member address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrDuplicateMember is returned when the address is already a member.
	ErrDuplicateMember = errors.New("member already exists")
	// ErrNotFound is returned for an unknown group id.
	ErrNotFound = errors.New("group not found")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Group is a named list of member e-mail addresses.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Clock supplies the current time for group ids.
type Clock interface {
	Now() time.Time
}

// Manager reads and writes groups in the store.
type Manager struct {
	mu       sync.Mutex
	store    kvstore.Store
	clock    Clock
	bus      *events.Bus
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewManager creates a group manager. bus and notifier may be nil.
func NewManager(store kvstore.Store, clock Clock, bus *events.Bus, notifier notify.Notifier, logger *slog.Logger) *Manager {
	if bus == nil {
		bus = events.NewBus()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, clock: clock, bus: bus, notifier: notifier, logger: logger}
}

// ValidEmail reports whether addr looks like an e-mail address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// SplitMembers parses a comma separated member list, dropping blanks.
func SplitMembers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// List returns all stored groups. Corrupt data reads as no groups.
func (m *Manager) List() []Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// Get returns the group with id.
func (m *Manager) Get(id string) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.load() {
		if g.ID == id {
			return g, nil
		}
	}
	return Group{}, ErrNotFound
}

// Create validates and stores a new group.
func (m *Manager) Create(name string, members []string) (Group, error) {
	g, err := m.create(name, members)
	if err != nil {
		return Group{}, err
	}
	m.bus.Publish(events.GroupsChanged, map[string]any{"group": g.ID, "members": len(g.Members)})
	return g, nil
}

func (m *Manager) create(name string, members []string) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		m.notifier.Notify(notify.ChannelGroups, "Please enter a group name.", notify.ToneWarning)
		return Group{}, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	cleaned := make([]string, 0, len(members))
	for _, addr := range members {
		if addr = strings.TrimSpace(addr); addr != "" {
			cleaned = append(cleaned, addr)
		}
	}
	if len(cleaned) == 0 || !allValid(cleaned) {
		m.notifier.Notify(notify.ChannelGroups, "Enter at least one valid e-mail address.", notify.ToneWarning)
		return Group{}, fmt.Errorf("%w: at least one valid member is required", ErrInvalidGroup)
	}

	list := m.load()
	g := Group{ID: m.nextID(list), Name: name, Members: cleaned}
	list = append(list, g)
	if err := m.save(list); err != nil {
		return Group{}, err
	}
	m.notifier.Notify(notify.ChannelGroups, "Group saved.", notify.ToneSuccess)
	m.logger.Info("group created", "group", g.ID, "members", len(g.Members))
	return g, nil
}

// AddMember appends email to the group with id.
func (m *Manager) AddMember(id, email string) (Group, error) {
	g, err := m.addMember(id, email)
	if err != nil {
		return Group{}, err
	}
	m.bus.Publish(events.GroupsChanged, map[string]any{"group": g.ID, "members": len(g.Members)})
	return g, nil
}

func (m *Manager) addMember(id, email string) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.TrimSpace(email)
	if email == "" {
		m.notifier.Notify(notify.ChannelGroups, "Please enter an e-mail address.", notify.ToneWarning)
		return Group{}, ErrInvalidEmail
	}
	if !ValidEmail(email) {
		m.notifier.Notify(notify.ChannelGroups, "E-mail address is invalid.", notify.ToneWarning)
		return Group{}, ErrInvalidEmail
	}

	list := m.load()
	idx := -1
	for i, g := range list {
		if g.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Group{}, ErrNotFound
	}
	for _, existing := range list[idx].Members {
		if existing == email {
			m.notifier.Notify(notify.ChannelGroups, "Member already exists.", notify.ToneInfo)
			return Group{}, ErrDuplicateMember
		}
	}
	list[idx].Members = append(list[idx].Members, email)
	if err := m.save(list); err != nil {
		return Group{}, err
	}
	m.notifier.Notify(notify.ChannelGroups, "Member added.", notify.ToneSuccess)
	return list[idx], nil
}

// MaxMembers returns the member count of the largest group, 0 without groups.
func (m *Manager) MaxMembers() int {
	best := 0
	for _, g := range m.List() {
		best = max(best, len(g.Members))
	}
	return best
}

// HasGroupWithAtLeast reports whether any group has n or more members.
func (m *Manager) HasGroupWithAtLeast(n int) bool {
	return m.MaxMembers() >= n
}

func (m *Manager) load() []Group {
	raw, err := m.store.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			m.logger.Warn("reading groups failed", "err", err)
		}
		return []Group{}
	}
	var list []Group
	if err := json.Unmarshal([]byte(raw), &list); err != nil || list == nil {
		return []Group{}
	}
	return list
}

func (m *Manager) save(list []Group) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding groups: %w", err)
	}
	if err := m.store.Set(StorageKey, string(data)); err != nil {
		m.logger.Error("store write failed", "key", StorageKey, "err", err)
		m.notifier.Notify(notify.ChannelGroups, "Could not save group.", notify.ToneDanger)
		return fmt.Errorf("saving groups: %w", err)
	}
	return nil
}

// nextID derives the id from the clock, stepping past ids already taken
// within the same millisecond.
func (m *Manager) nextID(list []Group) string {
	taken := make(map[string]bool, len(list))
	for _, g := range list {
		taken[g.ID] = true
	}
	ms := m.clock.Now().UnixMilli()
	for {
		id := fmt.Sprintf("%s%d", idPrefix, ms)
		if !taken[id] {
			return id
		}
		ms++
	}
}

func allValid(addrs []string) bool {
	for _, a := range addrs {
		if !ValidEmail(a) {
			return false
		}
	}
	return true
}
