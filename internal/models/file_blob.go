package models

import "time"

// FileBlob 은 content-addressed 파일 내용입니다. Hash 는 내용의 sha256 이며 한 번 저장되면 변경되지 않습니다.
type FileBlob struct {
	ID        uint      `gorm:"primaryKey"`
	Hash      string    `gorm:"column:hash;not null;uniqueIndex"`
	Content   []byte    `gorm:"column:content;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (FileBlob) TableName() string {
	return "files"
}
