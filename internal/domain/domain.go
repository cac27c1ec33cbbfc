package domain

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformTwitter:
		return true
	}
	return false
}

type ContentType string

const (
	ContentPhoto    ContentType = "photo"
	ContentVideo    ContentType = "video"
	ContentStory    ContentType = "story"
	ContentReel     ContentType = "reel"
	ContentCarousel ContentType = "carousel"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentPhoto, ContentVideo, ContentStory, ContentReel, ContentCarousel:
		return true
	}
	return false
}

// Snapshot is one planned piece of social content for a world. The scheduling
// fields are empty until the timeline pipeline fills them in.
type Snapshot struct {
	ID                   string      `json:"id"`
	WorldID              string      `json:"world_id,omitempty"`
	VisualDescription    string      `json:"visual_description,omitempty"`
	Caption              string      `json:"caption,omitempty"`
	Platform             Platform    `json:"platform,omitempty" enum:"instagram,tiktok,twitter"`
	ContentType          ContentType `json:"content_type,omitempty" enum:"photo,video,story,reel,carousel"`
	Timing               string      `json:"timing,omitempty"`
	Order                int         `json:"order"`
	PostingDate          string      `json:"posting_date,omitempty" format:"date"`
	WeekLabel            string      `json:"week_label,omitempty"`
	SuggestedFilmingDate string      `json:"suggested_filming_date,omitempty" format:"date"`
}

type ShootDayStatus string

const (
	ShootDaySuggested ShootDayStatus = "suggested"
	ShootDayConfirmed ShootDayStatus = "confirmed"
)

// ShootDay groups the snapshots filmed on the same calendar day.
// Date is the original proposal and is never rewritten; rescheduling only
// moves SuggestedDate.
type ShootDay struct {
	ID            string         `json:"id"`
	WorldID       string         `json:"world_id"`
	Date          string         `json:"date" format:"date"`
	SuggestedDate string         `json:"suggested_date" format:"date"`
	Status        ShootDayStatus `json:"status" enum:"suggested,confirmed"`
	SnapshotIDs   []string       `json:"snapshots"`
	ConfirmedDate string         `json:"confirmed_date,omitempty" format:"date"`
	CreatedAt     string         `json:"created_at,omitempty" format:"date-time"`
}

type World struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	GalaxyID    string `json:"galaxy_id,omitempty"`
	ReleaseDate string `json:"release_date" format:"date"`
	Color       string `json:"color,omitempty"`
	IsReleased  bool   `json:"is_released"`
}

type SnapshotStrategy struct {
	ID          string     `json:"id"`
	WorldID     string     `json:"world_id"`
	Snapshots   []Snapshot `json:"snapshots"`
	GeneratedAt string     `json:"generated_at" format:"date-time"`
}

type CalendarEventType string

const (
	EventPost         CalendarEventType = "post"
	EventShoot        CalendarEventType = "shoot"
	EventEditDeadline CalendarEventType = "edit_deadline"
	EventRelease      CalendarEventType = "release"
)

type CalendarEvent struct {
	ID          string            `json:"id"`
	Type        CalendarEventType `json:"type" enum:"post,shoot,edit_deadline,release"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Date        string            `json:"date" format:"date"`
	Time        string            `json:"time,omitempty"`
	WorldID     string            `json:"world_id,omitempty"`
	SnapshotID  string            `json:"snapshot_id,omitempty"`
	ShootDayID  string            `json:"shoot_day_id,omitempty"`
}

type ReminderSettings struct {
	DaysBefore []int  `json:"days_before"`
	Time       string `json:"time,omitempty"`
	Posts      bool   `json:"posts"`
	Shoots     bool   `json:"shoots"`
	Release    bool   `json:"release"`
}

type Reminder struct {
	EventID    string            `json:"event_id"`
	EventType  CalendarEventType `json:"event_type" enum:"post,shoot,edit_deadline,release"`
	Title      string            `json:"title"`
	EventDate  string            `json:"event_date" format:"date"`
	RemindOn   string            `json:"remind_on" format:"date"`
	Time       string            `json:"time,omitempty"`
	DaysBefore int               `json:"days_before"`
	WorldID    string            `json:"world_id,omitempty"`
}
