package data

import "testing"

func TestOriginID(t *testing.T) {
	oid := OriginID(1, 7)
	if oid != "0000000017" {
		t.Errorf("Expected origin id '0000000017', got '%s'", oid)
	}

	rec := KeyRecord{ChapterID: 100234567, UserID: 42, Key: "k"}
	if rec.OriginID() != "10023456742" {
		t.Errorf("Expected origin id '10023456742', got '%s'", rec.OriginID())
	}
}

func TestParseOriginID(t *testing.T) {
	chapterID, userID, err := ParseOriginID("0000000017")
	if err != nil {
		t.Fatalf("Failed to parse origin id: %v", err)
	}
	if chapterID != 1 {
		t.Errorf("Expected chapter id 1, got %d", chapterID)
	}
	if userID != 7 {
		t.Errorf("Expected user id 7, got %d", userID)
	}

	if _, _, err := ParseOriginID("000000001"); err == nil {
		t.Error("Expected error for origin id without user part")
	}
	if _, _, err := ParseOriginID("00000000x7"); err == nil {
		t.Error("Expected error for non numeric chapter id")
	}
}
