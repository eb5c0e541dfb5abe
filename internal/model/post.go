package model

import (
	"time"

	"gorm.io/gorm"
)

// Post is a blog article. Deletion is soft: the row stays for the sake
// of its comments and the DeletedAt index keeps it out of reads.
type Post struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Content   string         `gorm:"not null" json:"content"`
	Published bool           `gorm:"not null;default:true" json:"published"`
	AuthorID  uint           `gorm:"not null;index" json:"authorId"`
	Author    User           `json:"-"`
	Tags      []Tag          `gorm:"many2many:post_tags" json:"-"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Tag names are created implicitly the first time a post references
// them and are shared across posts through the post_tags join table.
type Tag struct {
	ID    uint   `gorm:"primarykey" json:"-"`
	Name  string `gorm:"uniqueIndex;size:64;not null" json:"tag"`
	Posts []Post `gorm:"many2many:post_tags" json:"-"`
}

// Comment belongs to a post and an author. Comments are hard deleted.
type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	AuthorID  uint      `gorm:"not null;index" json:"-"`
	Author    User      `json:"-"`
	Content   string    `gorm:"size:1024;not null" json:"content"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}
