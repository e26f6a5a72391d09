package resources

import "time"

type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Comment struct {
	ID         string    `json:"id"`
	LocationID string    `json:"locationId,omitempty"`
	PostID     string    `json:"postId,omitempty"`
	Body       string    `json:"body"`
	Author     Author    `json:"author"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type LocationMetrics struct {
	LocationID   string             `json:"locationId"`
	ReviewCount  int                `json:"reviewCount"`
	AverageScore float64            `json:"averageScore"`
	Safety       float64            `json:"safety"`
	Crowd        float64            `json:"crowd"`
	ByTimeOfDay  map[string]float64 `json:"byTimeOfDay,omitempty"`
}

type Precaution struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Severity string `json:"severity"`
}

type Review struct {
	ID         string    `json:"id"`
	LocationID string    `json:"locationId"`
	UserID     string    `json:"userId,omitempty"`
	TimeOfDay  string    `json:"timeOfDay"`
	Rating     int       `json:"rating"`
	Safety     int       `json:"safety"`
	Crowd      int       `json:"crowd"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Post struct {
	ID         string    `json:"id"`
	LocationID string    `json:"locationId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Author     Author    `json:"author"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
}

type VoteTally struct {
	PostID    string `json:"postId"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	// MyVote is -1, 0 or 1 for the signed-in user.
	MyVote int `json:"myVote"`
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	FollowerCount  int       `json:"followerCount"`
	FollowingCount int       `json:"followingCount"`
	Points         int       `json:"points"`
	CreatedAt      time.Time `json:"createdAt"`
}

type FollowStatus struct {
	Following bool `json:"following"`
}

type ReferralCode struct {
	Code string `json:"code"`
	URL  string `json:"url"`
}

type ReferralStats struct {
	Invited  int `json:"invited"`
	Redeemed int `json:"redeemed"`
	Points   int `json:"points"`
}

// FeedPage is one page of the community feed.
type FeedPage struct {
	Items      []Post `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	CloudName string `json:"cloudName"`
	APIKey    string `json:"apiKey"`
	Folder    string `json:"folder"`
}

// Ack is the body of writes that return nothing else.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
