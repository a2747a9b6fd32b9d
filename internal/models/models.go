package models

import (
	"time"

	"github.com/vidtube/backend/internal/docstore"
)

// Collection names in the document store.
const (
	UsersCollection         = "users"
	VideosCollection        = "videos"
	CommentsCollection      = "comments"
	LikesCollection         = "likes"
	SubscriptionsCollection = "subscriptions"
	PlaylistsCollection     = "playlists"
)

// User represents an account, which doubles as a channel.
type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Fullname     string    `json:"fullname"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	Password     string    `json:"-"`
	RefreshToken string    `json:"-"`
	WatchHistory []string  `json:"watchHistory"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToDocument converts the user for storage. An empty refresh token is stored
// as an absent field.
func (u User) ToDocument() docstore.Document {
	doc := docstore.Document{
		"_id":          u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"fullname":     u.Fullname,
		"avatar":       u.Avatar,
		"coverImage":   u.CoverImage,
		"password":     u.Password,
		"watchHistory": u.WatchHistory,
		"createdAt":    u.CreatedAt,
		"updatedAt":    u.UpdatedAt,
	}
	if u.WatchHistory == nil {
		doc["watchHistory"] = []any{}
	}
	if u.RefreshToken != "" {
		doc["refreshToken"] = u.RefreshToken
	}
	return docstore.NormalizeDocument(doc)
}

func UserFromDocument(doc docstore.Document) User {
	return User{
		ID:           doc.ID(),
		Username:     doc.String("username"),
		Email:        doc.String("email"),
		Fullname:     doc.String("fullname"),
		Avatar:       doc.String("avatar"),
		CoverImage:   doc.String("coverImage"),
		Password:     doc.String("password"),
		RefreshToken: doc.String("refreshToken"),
		WatchHistory: doc.Strings("watchHistory"),
		CreatedAt:    doc.Time("createdAt"),
		UpdatedAt:    doc.Time("updatedAt"),
	}
}

// PublicProfile is the subset of a User exposed when embedded in other views.
type PublicProfile struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	Avatar   string `json:"avatar"`
}

// PublicProfileFields lists the stored fields backing PublicProfile.
var PublicProfileFields = []string{"username", "fullname", "avatar"}

// PublicProfileFromDocument returns nil for a nil document, which is how a
// dangling reference surfaces in joined views.
func PublicProfileFromDocument(doc docstore.Document) *PublicProfile {
	if doc == nil {
		return nil
	}
	return &PublicProfile{
		ID:       doc.ID(),
		Username: doc.String("username"),
		Fullname: doc.String("fullname"),
		Avatar:   doc.String("avatar"),
	}
}

// Video is an uploaded media item owned by a channel.
type Video struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (v Video) ToDocument() docstore.Document {
	return docstore.NormalizeDocument(docstore.Document{
		"_id":         v.ID,
		"title":       v.Title,
		"description": v.Description,
		"videoFile":   v.VideoFile,
		"thumbnail":   v.Thumbnail,
		"duration":    v.Duration,
		"views":       v.Views,
		"isPublished": v.IsPublished,
		"owner":       v.Owner,
		"createdAt":   v.CreatedAt,
		"updatedAt":   v.UpdatedAt,
	})
}

func VideoFromDocument(doc docstore.Document) Video {
	return Video{
		ID:          doc.ID(),
		Title:       doc.String("title"),
		Description: doc.String("description"),
		VideoFile:   doc.String("videoFile"),
		Thumbnail:   doc.String("thumbnail"),
		Duration:    doc.Float("duration"),
		Views:       doc.Int("views"),
		IsPublished: doc.Bool("isPublished"),
		Owner:       doc.String("owner"),
		CreatedAt:   doc.Time("createdAt"),
		UpdatedAt:   doc.Time("updatedAt"),
	}
}

// Comment is a text reply attached to a video.
type Comment struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Owner     string    `json:"owner"`
	Video     string    `json:"video"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c Comment) ToDocument() docstore.Document {
	return docstore.NormalizeDocument(docstore.Document{
		"_id":       c.ID,
		"content":   c.Content,
		"owner":     c.Owner,
		"video":     c.Video,
		"createdAt": c.CreatedAt,
		"updatedAt": c.UpdatedAt,
	})
}

func CommentFromDocument(doc docstore.Document) Comment {
	return Comment{
		ID:        doc.ID(),
		Content:   doc.String("content"),
		Owner:     doc.String("owner"),
		Video:     doc.String("video"),
		CreatedAt: doc.Time("createdAt"),
		UpdatedAt: doc.Time("updatedAt"),
	}
}

// Subscription links a subscriber to a channel.
type Subscription struct {
	ID         string    `json:"_id"`
	Subscriber string    `json:"subscriber"`
	Channel    string    `json:"channel"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s Subscription) ToDocument() docstore.Document {
	return docstore.NormalizeDocument(docstore.Document{
		"_id":        s.ID,
		"subscriber": s.Subscriber,
		"channel":    s.Channel,
		"createdAt":  s.CreatedAt,
		"updatedAt":  s.UpdatedAt,
	})
}

func SubscriptionFromDocument(doc docstore.Document) Subscription {
	return Subscription{
		ID:         doc.ID(),
		Subscriber: doc.String("subscriber"),
		Channel:    doc.String("channel"),
		CreatedAt:  doc.Time("createdAt"),
		UpdatedAt:  doc.Time("updatedAt"),
	}
}

// Playlist is an ordered, owner-curated list of videos.
type Playlist struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Videos      []string  `json:"videos"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Playlist) ToDocument() docstore.Document {
	doc := docstore.Document{
		"_id":       p.ID,
		"name":      p.Name,
		"videos":    p.Videos,
		"owner":     p.Owner,
		"createdAt": p.CreatedAt,
		"updatedAt": p.UpdatedAt,
	}
	if p.Videos == nil {
		doc["videos"] = []any{}
	}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	return docstore.NormalizeDocument(doc)
}

func PlaylistFromDocument(doc docstore.Document) Playlist {
	return Playlist{
		ID:          doc.ID(),
		Name:        doc.String("name"),
		Description: doc.String("description"),
		Videos:      doc.Strings("videos"),
		Owner:       doc.String("owner"),
		CreatedAt:   doc.Time("createdAt"),
		UpdatedAt:   doc.Time("updatedAt"),
	}
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
