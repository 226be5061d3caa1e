package db

import "time"

// NewsArticle maps news_articles. URL is the natural key.
type NewsArticle struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string    `gorm:"column:title;type:text;not null"`
	URL         string    `gorm:"column:url;type:text;not null;uniqueIndex:news_articles_url_key"`
	Tag         string    `gorm:"column:tag;type:text;not null;default:general"`
	Summary     string    `gorm:"column:summary;type:text;not null;default:''"`
	ImageURL    *string   `gorm:"column:image_url;type:text"`
	PublishedAt time.Time `gorm:"column:published_at;type:timestamptz;not null"`
	Source      string    `gorm:"column:source;type:text;not null"`
	Language    string    `gorm:"column:language;type:text;not null;default:''"`
	Fresh       bool      `gorm:"column:fresh;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (NewsArticle) TableName() string { return "news_articles" }

// KeywordSnapshot maps keyword_snapshots, one row per keyword per day.
type KeywordSnapshot struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Keyword     string    `gorm:"column:keyword;type:text;not null;uniqueIndex:keyword_snapshots_keyword_date_key,priority:1"`
	Date        time.Time `gorm:"column:date;type:date;not null;uniqueIndex:keyword_snapshots_keyword_date_key,priority:2"`
	Clicks      int       `gorm:"column:clicks;type:integer;not null;default:0"`
	Impressions int       `gorm:"column:impressions;type:integer;not null;default:0"`
	CTR         float64   `gorm:"column:ctr;type:double precision;not null;default:0"`
	Position    float64   `gorm:"column:position;type:double precision;not null;default:0"`
	Fresh       bool      `gorm:"column:fresh;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (KeywordSnapshot) TableName() string { return "keyword_snapshots" }

// KeywordMetric maps keyword_metrics, the per-keyword rollup of the latest update.
type KeywordMetric struct {
	Keyword     string    `gorm:"column:keyword;type:text;primaryKey"`
	Clicks      int       `gorm:"column:clicks;type:integer;not null;default:0"`
	Impressions int       `gorm:"column:impressions;type:integer;not null;default:0"`
	CTR         float64   `gorm:"column:ctr;type:double precision;not null;default:0"`
	Position    float64   `gorm:"column:position;type:double precision;not null;default:0"`
	Samples     int       `gorm:"column:samples;type:integer;not null;default:0"`
	Fresh       bool      `gorm:"column:fresh;not null;default:true"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (KeywordMetric) TableName() string { return "keyword_metrics" }

// AIRankScore maps ai_rank_scores, the append-only ranking history.
type AIRankScore struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Model     string    `gorm:"column:model;type:text;not null;index:idx_ai_rank_scores_model"`
	Score     int       `gorm:"column:score;type:integer;not null"`
	Rank      *int      `gorm:"column:rank;type:integer"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (AIRankScore) TableName() string { return "ai_rank_scores" }

// AIRankLatest maps ai_rank_latest, the most recent score per model.
type AIRankLatest struct {
	Model     string    `gorm:"column:model;type:text;primaryKey"`
	Score     int       `gorm:"column:score;type:integer;not null"`
	Rank      *int      `gorm:"column:rank;type:integer"`
	Fresh     bool      `gorm:"column:fresh;not null;default:true"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (AIRankLatest) TableName() string { return "ai_rank_latest" }

// ReferralTarget maps referral_targets. Email is stored lowercased and trimmed.
type ReferralTarget struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex:referral_targets_email_key"`
	FirstName string    `gorm:"column:first_name;type:text;not null"`
	LastName  string    `gorm:"column:last_name;type:text;not null"`
	Firm      *string   `gorm:"column:firm;type:text"`
	City      *string   `gorm:"column:city;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ReferralTarget) TableName() string { return "referral_targets" }

// ReferralOutbox maps referral_outbox drafts.
type ReferralOutbox struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TargetID  int64          `gorm:"column:target_id;type:bigint;not null;index"`
	Target    ReferralTarget `gorm:"foreignKey:TargetID;references:ID;constraint:OnDelete:CASCADE"`
	Subject   string         `gorm:"column:subject;type:text;not null"`
	Body      string         `gorm:"column:body;type:text;not null"`
	Sent      bool           `gorm:"column:sent;not null;default:false"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ReferralOutbox) TableName() string { return "referral_outbox" }

// IngestRun maps ingest_runs, one row per refresh pass.
type IngestRun struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string    `gorm:"column:run_id;type:text;not null;uniqueIndex:uq_ingest_runs_run_id"`
	Module     string    `gorm:"column:module;type:text;not null"`
	Status     string    `gorm:"column:status;type:text;not null"`
	Fetched    int       `gorm:"column:fetched;type:integer;not null;default:0"`
	Stored     int       `gorm:"column:stored;type:integer;not null;default:0"`
	Demo       bool      `gorm:"column:demo;not null;default:false"`
	Error      *string   `gorm:"column:error_message;type:text"`
	StartedAt  time.Time `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt time.Time `gorm:"column:finished_at;type:timestamptz;not null"`
}

func (IngestRun) TableName() string { return "ingest_runs" }

func autoMigrateModels() []any {
	return []any{
		&NewsArticle{},
		&KeywordSnapshot{},
		&KeywordMetric{},
		&AIRankScore{},
		&AIRankLatest{},
		&ReferralTarget{},
		&ReferralOutbox{},
		&IngestRun{},
	}
}
