package entities

import (
	"strings"
	"time"
)

// Posting is one job listing as returned by a source, keyed by Link.
type Posting struct {
	Link        string `validate:"required,url"`
	Title       string `validate:"required"`
	Company     string
	Location    string
	Description string
	Module      string
}

type StoredPosting struct {
	ID          uint   `gorm:"primaryKey"`
	Link        string `gorm:"uniqueIndex;not null"`
	Title       string
	Company     string
	Location    string
	Description string
	Module      string `gorm:"index"`
	Tags        string
	IsNew       bool      `gorm:"default:true"`
	FirstSeen   time.Time `gorm:"autoCreateTime"`
}

func (StoredPosting) TableName() string {
	return "postings"
}

func NewStoredPosting(posting Posting, tags []string) StoredPosting {
	return StoredPosting{
		Link:        posting.Link,
		Title:       posting.Title,
		Company:     posting.Company,
		Location:    posting.Location,
		Description: posting.Description,
		Module:      posting.Module,
		Tags:        strings.Join(tags, ","),
		IsNew:       true,
	}
}

func (p StoredPosting) TagsAsArray() []string {
	if p.Tags == "" {
		return []string{}
	}
	return strings.Split(p.Tags, ",")
}
