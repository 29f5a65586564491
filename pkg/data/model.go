package data

import (
	"fmt"
	"strconv"
)

// OriginIDChapterDigits is the fixed width of the chapter part of an origin id.
const OriginIDChapterDigits = 9

type Book struct {
	ID          int64
	Name        string
	Author      string
	CoverURL    string
	LastChapter string // title of the latest chapter
	Updated     string
}

type Division struct {
	ID          int64
	BookID      int64
	Name        string
	Index       int
	Description string
	Linear      *bool // persisted override, nil when never marked
}

type Chapter struct {
	ID         int64
	BookID     int64
	DivisionID int64
	Title      string
	Index      int
	Downloaded bool
}

type KeyRecord struct {
	ChapterID int64
	UserID    int64
	Key       string
}

// OriginID returns the origin id of a key record.
func (k KeyRecord) OriginID() string {
	return OriginID(k.ChapterID, k.UserID)
}

// OriginID encodes a (chapter, user) pair: the chapter id zero padded to nine
// digits followed by the user id.
func OriginID(chapterID, userID int64) string {
	return fmt.Sprintf("%0*d%d", OriginIDChapterDigits, chapterID, userID)
}

// ParseOriginID splits an origin id back into chapter and user ids.
func ParseOriginID(oid string) (chapterID, userID int64, err error) {
	if len(oid) <= OriginIDChapterDigits {
		return 0, 0, fmt.Errorf("origin id %q too short", oid)
	}
	chapterID, err = strconv.ParseInt(oid[:OriginIDChapterDigits], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chapter id in origin id %q: %w", oid, err)
	}
	userID, err = strconv.ParseInt(oid[OriginIDChapterDigits:], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid user id in origin id %q: %w", oid, err)
	}
	return chapterID, userID, nil
}
