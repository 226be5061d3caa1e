// Package union serves the static union campaign board.
package union

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrMissingID = errors.New("campaign id is required")
	ErrNotFound  = errors.New("campaign not found")
)

type Campaign struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	Participants int    `json:"participants"`
	Goal         int    `json:"goal"`
	Progress     int    `json:"progress"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
}

type Statistics struct {
	TotalMembers       int `json:"totalMembers"`
	ActiveCampaigns    int `json:"activeCampaigns"`
	CompletedCampaigns int `json:"completedCampaigns"`
	TotalFunds         int `json:"totalFunds"`
	CasesWon           int `json:"casesWon"`
	CasesInProgress    int `json:"casesInProgress"`
}

type Activity struct {
	ID          int       `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Priority    string    `json:"priority"`
}

type Dashboard struct {
	Campaigns      []Campaign `json:"campaigns"`
	Statistics     Statistics `json:"statistics"`
	RecentActivity []Activity `json:"recentActivity"`
}

const dashboardActivity = 5

// Board holds the campaign list. Joins mutate it for the life of the process.
type Board struct {
	mu        sync.Mutex
	campaigns []Campaign
	stats     Statistics
}

func NewBoard() *Board {
	return &Board{
		campaigns: []Campaign{
			{
				ID:           1,
				Title:        "Workers' Rights Campaign 2025",
				Description:  "Supporting fair wages and workplace safety for all workers",
				Status:       "active",
				Participants: 1247,
				Goal:         2000,
				Progress:     62,
				StartDate:    "2025-01-15",
				EndDate:      "2025-12-31",
			},
			{
				ID:           2,
				Title:        "Workplace Safety Advocacy",
				Description:  "Promoting safer working conditions in construction and manufacturing",
				Status:       "active",
				Participants: 892,
				Goal:         1500,
				Progress:     59,
				StartDate:    "2025-02-01",
				EndDate:      "2025-11-30",
			},
			{
				ID:           3,
				Title:        "Healthcare Benefits Initiative",
				Description:  "Ensuring adequate healthcare coverage for union members",
				Status:       "completed",
				Participants: 1856,
				Goal:         1500,
				Progress:     100,
				StartDate:    "2024-08-01",
				EndDate:      "2024-12-31",
			},
		},
		stats: Statistics{
			TotalMembers:       5420,
			ActiveCampaigns:    2,
			CompletedCampaigns: 1,
			TotalFunds:         125000,
			CasesWon:           89,
			CasesInProgress:    23,
		},
	}
}

func (b *Board) Campaigns() []Campaign {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Campaign(nil), b.campaigns...)
}

func (b *Board) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Activity returns the recent activity feed relative to now, newest first.
func (b *Board) Activity(now time.Time) []Activity {
	now = now.UTC()
	return []Activity{
		{
			ID:          1,
			Type:        "campaign_update",
			Title:       "Workers' Rights Campaign milestone reached",
			Description: "Over 1,200 workers have joined the campaign",
			Timestamp:   now,
			Priority:    "high",
		},
		{
			ID:          2,
			Type:        "legal_victory",
			Title:       "Workplace safety case won",
			Description: "$150K settlement for injured construction worker",
			Timestamp:   now.Add(-24 * time.Hour),
			Priority:    "high",
		},
		{
			ID:          3,
			Type:        "member_milestone",
			Title:       "5,000 union members milestone",
			Description: "Reached 5,000 active union members",
			Timestamp:   now.Add(-48 * time.Hour),
			Priority:    "medium",
		},
	}
}

// Dashboard returns the active campaigns, the statistics and up to five activity
// items.
func (b *Board) Dashboard(now time.Time) Dashboard {
	active := make([]Campaign, 0, 2)
	for _, c := range b.Campaigns() {
		if c.Status == "active" {
			active = append(active, c)
		}
	}
	activity := b.Activity(now)
	if len(activity) > dashboardActivity {
		activity = activity[:dashboardActivity]
	}
	return Dashboard{Campaigns: active, Statistics: b.Statistics(), RecentActivity: activity}
}

// Join adds one participant and recomputes progress as a rounded percentage of
// the goal. Progress is not capped at 100.
func (b *Board) Join(id int) (Campaign, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.campaigns {
		c := &b.campaigns[i]
		if c.ID != id {
			continue
		}
		c.Participants++
		if c.Goal > 0 {
			c.Progress = int(math.Floor(float64(c.Participants)/float64(c.Goal)*100 + 0.5))
		}
		return *c, nil
	}
	return Campaign{}, ErrNotFound
}

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// ParseCampaignID reads a campaign id from a decoded JSON value. Numbers are
// truncated and strings are read up to the first non-digit. Empty values return
// ErrMissingID; unparseable ones return ErrNotFound.
func ParseCampaignID(raw any) (int, error) {
	switch v := raw.(type) {
	case nil:
		return 0, ErrMissingID
	case bool:
		if !v {
			return 0, ErrMissingID
		}
		return 0, ErrNotFound
	case float64:
		if v == 0 || math.IsNaN(v) {
			return 0, ErrMissingID
		}
		return int(v), nil
	case string:
		if v == "" {
			return 0, ErrMissingID
		}
		digits := leadingInt.FindString(strings.TrimSpace(v))
		if digits == "" {
			return 0, ErrNotFound
		}
		id, err := strconv.Atoi(digits)
		if err != nil {
			return 0, ErrNotFound
		}
		return id, nil
	}
	return 0, ErrNotFound
}
