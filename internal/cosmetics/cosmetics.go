// Package cosmetics caches channel, user, badge and emote metadata for the
// current channel. A Store is created by the host and passed to whatever
// needs lookups; switching channels resets it.
package cosmetics

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 512

// Badge describes a chat badge.
type Badge struct {
	Name  string
	Title string
}

// Emote describes an emote image.
type Emote struct {
	ID   string
	Name string
	URL  string
}

// Resolver fetches metadata the store does not have yet.
type Resolver interface {
	ChannelName(id string) (string, error)
	ProfileImage(userID string) (string, error)
	Badge(name string) (Badge, error)
	Emote(id string) (Emote, error)
}

// Store is a set of LRU caches scoped to one channel.
type Store struct {
	resolver Resolver
	channel  string

	channels *lru.Cache[string, string]
	profiles *lru.Cache[string, string]
	badges   *lru.Cache[string, Badge]
	emotes   *lru.Cache[string, Emote]
}

// New creates a store with caches of size entries each. A nil resolver uses
// Static.
func New(r Resolver, size int) (*Store, error) {
	if r == nil {
		r = Static{}
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	s := &Store{resolver: r}
	var err error
	if s.channels, err = lru.New[string, string](size); err != nil {
		return nil, fmt.Errorf("channel cache: %w", err)
	}
	if s.profiles, err = lru.New[string, string](size); err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	if s.badges, err = lru.New[string, Badge](size); err != nil {
		return nil, fmt.Errorf("badge cache: %w", err)
	}
	if s.emotes, err = lru.New[string, Emote](size); err != nil {
		return nil, fmt.Errorf("emote cache: %w", err)
	}
	return s, nil
}

// Channel returns the channel the store is scoped to.
func (s *Store) Channel() string { return s.channel }

// Reset drops everything and scopes the store to channel.
func (s *Store) Reset(channel string) {
	s.channel = channel
	s.channels.Purge()
	s.profiles.Purge()
	s.badges.Purge()
	s.emotes.Purge()
}

// Len returns the total number of cached items.
func (s *Store) Len() int {
	return s.channels.Len() + s.profiles.Len() + s.badges.Len() + s.emotes.Len()
}

// ChannelName returns the display name of a channel, falling back to id.
func (s *Store) ChannelName(id string) string {
	if id == "" {
		return ""
	}
	if v, ok := s.channels.Get(id); ok {
		return v
	}
	name, err := s.resolver.ChannelName(id)
	if err != nil || name == "" {
		return id
	}
	s.channels.Add(id, name)
	return name
}

// ProfileImage returns the avatar URL of a user, or "" when unknown.
func (s *Store) ProfileImage(userID string) string {
	if userID == "" {
		return ""
	}
	if v, ok := s.profiles.Get(userID); ok {
		return v
	}
	url, err := s.resolver.ProfileImage(userID)
	if err != nil {
		return ""
	}
	s.profiles.Add(userID, url)
	return url
}

// Badge returns badge metadata. Unknown badges get their name as title.
func (s *Store) Badge(name string) Badge {
	if v, ok := s.badges.Get(name); ok {
		return v
	}
	b, err := s.resolver.Badge(name)
	if err != nil {
		return Badge{Name: name, Title: name}
	}
	s.badges.Add(name, b)
	return b
}

// Emote returns emote metadata, or false when the resolver does not know it.
func (s *Store) Emote(id string) (Emote, bool) {
	if v, ok := s.emotes.Get(id); ok {
		return v, true
	}
	e, err := s.resolver.Emote(id)
	if err != nil {
		return Emote{}, false
	}
	s.emotes.Add(id, e)
	return e, true
}

// Static resolves from built-in tables only.
type Static struct{}

var badgeTitles = map[string]string{
	"broadcaster": "Broadcaster",
	"moderator":   "Moderator",
	"vip":         "VIP",
	"subscriber":  "Subscriber",
	"founder":     "Founder",
	"staff":       "Staff",
	"admin":       "Admin",
	"partner":     "Verified",
}

// ErrUnknown is returned by Static for metadata it has no table for.
var ErrUnknown = errors.New("cosmetics: unknown")

func (Static) ChannelName(id string) (string, error) {
	return "#" + strings.TrimPrefix(id, "#"), nil
}

func (Static) ProfileImage(string) (string, error) { return "", ErrUnknown }

func (Static) Badge(name string) (Badge, error) {
	title, ok := badgeTitles[name]
	if !ok {
		return Badge{}, ErrUnknown
	}
	return Badge{Name: name, Title: title}, nil
}

func (Static) Emote(string) (Emote, error) { return Emote{}, ErrUnknown }
