package types

import "time"

// RawSegment is one unit returned by script segmentation, before any
// video has been resolved for it.
type RawSegment struct {
	Text        string   `json:"text"`
	SearchTerms []string `json:"search_terms"`
}

// ScriptSegment is one unit of script text mapped to at most one video asset.
// Text and ID never change after creation; SearchTerm and the Video* fields
// are replaced together on every successful (re-)resolution.
type ScriptSegment struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	SearchTerm     string   `json:"search_term"`
	AllSearchTerms []string `json:"all_search_terms"`

	VideoURL      string `json:"video_url,omitempty"`
	VideoDuration int    `json:"video_duration,omitempty"`
	VideoUser     string `json:"video_user,omitempty"`
	VideoUserURL  string `json:"video_user_url,omitempty"`
}

// Resolved reports whether the segment carries an asset. Asset metadata is
// set and cleared together with VideoURL, never partially.
func (s ScriptSegment) Resolved() bool { return s.VideoURL != "" }

// SetAsset populates the active term and all asset fields from a selected
// video file.
func (s *ScriptSegment) SetAsset(term string, v Video, f VideoFile) {
	s.SearchTerm = term
	s.VideoURL = f.Link
	s.VideoDuration = v.Duration
	s.VideoUser = v.User.Name
	s.VideoUserURL = v.User.URL
}

// APIKeys carries the caller-supplied credentials for the two external
// services. Both are required before any pipeline call.
type APIKeys struct {
	Gemini string
	Pexels string
}

// Video is one stock-footage search result.
type Video struct {
	ID       int         `json:"id"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Duration int         `json:"duration"`
	URL      string      `json:"url"`
	Image    string      `json:"image"`
	User     VideoUser   `json:"user"`
	Files    []VideoFile `json:"video_files"`
}

// VideoUser is the attribution block of a search result.
type VideoUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// VideoFile is one quality-tagged variant of a video.
type VideoFile struct {
	ID       int    `json:"id"`
	Quality  string `json:"quality"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Link     string `json:"link"`
}

// Manifest is the persisted outcome of one generation run.
type Manifest struct {
	Script      string          `json:"script"`
	GeneratedAt time.Time       `json:"generated_at"`
	Segments    []ScriptSegment `json:"segments"`
}
