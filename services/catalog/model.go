package catalog

import (
	"errors"
	"strings"
)

type OrderType string

const (
	Followers OrderType = "followers"
	Likes     OrderType = "likes"
	Comments  OrderType = "comments"
	Bundle    OrderType = "bundle"
)

func (t OrderType) String() string {
	switch t {
	case Followers, Likes, Comments, Bundle:
		return string(t)
	default:
		return ""
	}
}

// NeedsURLs reports whether the draft pipeline must collect target post URLs.
func (t OrderType) NeedsURLs() bool {
	return t == Likes || t == Comments || t == Bundle
}

type Platform string

const (
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
	TikTok    Platform = "tiktok"
	Twitter   Platform = "twitter"
)

var Platforms = []Platform{Instagram, Facebook, TikTok, Twitter}

type TaskType string

const (
	Follow  TaskType = "follow"
	Like    TaskType = "like"
	Comment TaskType = "comment"
)

// NeedsDwell reports whether proofs for this task type are subject to the dwell-time gate.
func (t TaskType) NeedsDwell() bool {
	return t == Like || t == Comment
}

// Code is the single-letter form used in callback tags.
func (t TaskType) Code() string {
	switch t {
	case Follow:
		return "f"
	case Like:
		return "l"
	case Comment:
		return "c"
	default:
		return ""
	}
}

var (
	ErrInvalidCatalogEntry = errors.New("catalog: invalid catalog entry")
	ErrUnknownPlatform     = errors.New("catalog: unknown platform")
	ErrUnknownOrderType    = errors.New("catalog: unknown order type")
	ErrUnknownTaskType     = errors.New("catalog: unknown task type")
)

func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(strings.ToLower(strings.TrimSpace(s)))
	if t.String() == "" {
		return "", ErrUnknownOrderType
	}
	return t, nil
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", ErrUnknownPlatform
}

// ParseTaskType accepts both the full name and the callback code.
func ParseTaskType(s string) (TaskType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "follow":
		return Follow, nil
	case "l", "like":
		return Like, nil
	case "c", "comment":
		return Comment, nil
	default:
		return "", ErrUnknownTaskType
	}
}

// Quote is the resolved unit breakdown and price of one package.
type Quote struct {
	FollowUnits  int   `mapstructure:"FOLLOWS" json:"follow_units"`
	LikeUnits    int   `mapstructure:"LIKES" json:"like_units"`
	CommentUnits int   `mapstructure:"COMMENTS" json:"comment_units"`
	Price        int64 `mapstructure:"PRICE" json:"price"`
}
