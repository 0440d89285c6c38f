package mock

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	logins = []string{"octocat", "mona", "hubot", "defunkt", "mojombo", "pjhyett", "wycats", "ezmobius"}
	repos  = []string{"dotfiles", "site", "api", "cli", "docs", "infra", "sandbox", "notes"}
	titles = []string{
		"Fix flaky test",
		"Add dark mode",
		"Bump dependencies",
		"Improve error messages",
		"Refactor config loading",
		"Update README",
		"Handle empty responses",
		"Speed up CI",
	}
	eventTypes = []string{
		"PushEvent", "IssuesEvent", "PullRequestEvent", "WatchEvent", "ForkEvent",
		"CreateEvent", "DeleteEvent", "ReleaseEvent", "CommitCommentEvent", "GollumEvent",
	}
)

// RateLimitedLogin always answers 403 with GitHub's rate limit message.
const RateLimitedLogin = "rate-limited"

// maxEvents is how many events GitHub keeps per feed.
const maxEvents = 300

// GenerateInterval is how often new activity appears.
const GenerateInterval = 30 * time.Second

type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

// Event mirrors the GitHub events API shape.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Actor     Actor          `json:"actor"`
	Repo      Repo           `json:"repo"`
	Payload   map[string]any `json:"payload"`
	Public    bool           `json:"public"`
	CreatedAt time.Time      `json:"created_at"`
}

type Actor struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type Repo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Store holds generated users and their events in memory.
type Store struct {
	mu      sync.RWMutex
	users   []User
	byLogin map[string]int // lowercase login -> index
	events  map[string][]Event
	rng     *rand.Rand
	nextID  int64
	now     func() time.Time
}

// NewStore creates numUsers users, each with three events from the last day
// but not the last hour.
func NewStore(numUsers int, seed int64) *Store {
	s := &Store{
		byLogin: make(map[string]int),
		events:  make(map[string][]Event),
		rng:     rand.New(rand.NewSource(seed)),
		now:     time.Now,
	}
	s.addUsers(numUsers)

	now := s.now()
	for _, u := range s.users {
		for i := 0; i < 3; i++ {
			s.appendEvent(u, now.Add(-time.Hour-time.Duration(s.rng.Intn(23*60))*time.Minute))
		}
	}
	return s
}

func (s *Store) addUsers(n int) {
	for i := 0; i < n; i++ {
		idx := len(s.users)
		login := logins[idx%len(logins)]
		if idx >= len(logins) {
			login = fmt.Sprintf("%s-%d", login, idx/len(logins))
		}
		u := User{
			Login:     login,
			ID:        int64(1000 + idx),
			AvatarURL: fmt.Sprintf("https://avatars.githubusercontent.com/u/%d?v=4", 1000+idx),
			Type:      "User",
		}
		s.users = append(s.users, u)
		s.byLogin[strings.ToLower(login)] = idx
	}
}

// AddUsers adds new users to the list and returns the total.
func (s *Store) AddUsers(numUsers int) (int, error) {
	if numUsers < 1 {
		return 0, fmt.Errorf("numUsers must be at least 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUsers(numUsers)
	return len(s.users), nil
}

// User looks a login up case-insensitively, as GitHub does.
func (s *Store) User(login string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byLogin[strings.ToLower(login)]
	if !ok {
		return User{}, false
	}
	return s.users[idx], true
}

// Events returns what login did, newest first.
func (s *Store) Events(login string) ([]Event, bool) {
	u, ok := s.User(login)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.events[u.Login]), true
}

// ReceivedEvents returns the activity of the users login follows: the next
// three users in the list.
func (s *Store) ReceivedEvents(login string) ([]Event, bool) {
	u, ok := s.User(login)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byLogin[strings.ToLower(u.Login)]
	var merged []Event
	for i := 1; i <= 3 && i < len(s.users); i++ {
		followed := s.users[(idx+i)%len(s.users)]
		merged = append(merged, s.events[followed.Login]...)
	}
	return newestFirst(merged), true
}

// Generate adds 0-3 events for each user, timestamped within the last interval.
func (s *Store) Generate(interval time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	added := 0
	for _, u := range s.users {
		n := s.rng.Intn(4)
		for i := 0; i < n; i++ {
			ago := time.Duration(s.rng.Int63n(int64(interval) + 1))
			s.appendEvent(u, now.Add(-ago))
			added++
		}
	}
	return added
}

// GeneratePeriodically calls Generate every interval until stop is closed.
func (s *Store) GeneratePeriodically(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Generate(interval)
		}
	}
}

// appendEvent must be called with mu held for writing (or before the store is shared).
func (s *Store) appendEvent(u User, at time.Time) {
	s.nextID++
	typ := eventTypes[s.rng.Intn(len(eventTypes))]
	repo := fmt.Sprintf("%s/%s", u.Login, repos[s.rng.Intn(len(repos))])
	ev := Event{
		ID:        fmt.Sprintf("%d", 40000000000+s.nextID),
		Type:      typ,
		Actor:     Actor{ID: u.ID, Login: u.Login, AvatarURL: u.AvatarURL},
		Repo:      Repo{ID: 500000 + s.nextID, Name: repo},
		Payload:   s.payload(typ),
		Public:    true,
		CreatedAt: at.UTC().Truncate(time.Second),
	}

	feed := append(s.events[u.Login], ev)
	if len(feed) > maxEvents {
		feed = feed[len(feed)-maxEvents:]
	}
	s.events[u.Login] = feed
}

func (s *Store) payload(typ string) map[string]any {
	title := titles[s.rng.Intn(len(titles))]
	number := s.rng.Intn(500) + 1
	switch typ {
	case "PushEvent":
		commits := make([]map[string]any, s.rng.Intn(3)+1)
		for i := range commits {
			commits[i] = map[string]any{"sha": fmt.Sprintf("%040x", s.rng.Int63()), "message": title}
		}
		return map[string]any{"ref": "refs/heads/main", "size": len(commits), "commits": commits}
	case "IssuesEvent":
		return map[string]any{"action": "opened", "issue": map[string]any{"number": number, "title": title}}
	case "PullRequestEvent":
		return map[string]any{"action": "opened", "number": number, "pull_request": map[string]any{"number": number, "title": title}}
	case "WatchEvent":
		return map[string]any{"action": "started"}
	case "ForkEvent":
		return map[string]any{"forkee": map[string]any{"full_name": "someone/fork"}}
	case "CreateEvent", "DeleteEvent":
		return map[string]any{"ref": "feature-" + fmt.Sprint(number), "ref_type": "branch"}
	case "ReleaseEvent":
		return map[string]any{"action": "published", "release": map[string]any{"tag_name": fmt.Sprintf("v1.%d.0", number), "name": title}}
	case "CommitCommentEvent":
		return map[string]any{"comment": map[string]any{"body": "Looks good: " + title}}
	default:
		return map[string]any{}
	}
}

func newestFirst(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
