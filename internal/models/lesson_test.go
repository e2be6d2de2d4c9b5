package models

import "testing"

func TestDedupKey(t *testing.T) {
	tests := []struct {
		name           string
		lesson         LessonRecord
		wantSource     string
		wantExternalID string
	}{
		{
			name:           "promoted columns win",
			lesson:         LessonRecord{Source: "google_calendar", ExternalID: "evt-1"},
			wantSource:     "google_calendar",
			wantExternalID: "evt-1",
		},
		{
			name: "promoted columns win over stale metadata",
			lesson: LessonRecord{
				Source:     "google_calendar",
				ExternalID: "evt-1",
				Metadata:   map[string]string{MetaSource: "other", MetaExternalID: "evt-9"},
			},
			wantSource:     "google_calendar",
			wantExternalID: "evt-1",
		},
		{
			name: "metadata fallback for legacy records",
			lesson: LessonRecord{
				Metadata: map[string]string{MetaSource: "cal_dot_com", MetaExternalID: "booking-1"},
			},
			wantSource:     "cal_dot_com",
			wantExternalID: "booking-1",
		},
		{
			name:   "nil metadata yields empty pair",
			lesson: LessonRecord{},
		},
		{
			name:   "metadata without the keys yields empty pair",
			lesson: LessonRecord{Metadata: map[string]string{"unrelated": "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, externalID := tt.lesson.DedupKey()
			if source != tt.wantSource || externalID != tt.wantExternalID {
				t.Errorf("DedupKey() = (%q, %q), want (%q, %q)",
					source, externalID, tt.wantSource, tt.wantExternalID)
			}
		})
	}
}

func TestEventIdentifier(t *testing.T) {
	withID := CanonicalEvent{Source: SourceGoogleCalendar, ExternalID: "evt-1", Title: "Tennis"}
	if got := withID.Identifier(); got != "google_calendar/evt-1" {
		t.Errorf("Identifier() = %q", got)
	}

	withoutID := CanonicalEvent{Source: SourceCalDotCom, Title: "Tennis"}
	if got := withoutID.Identifier(); got != "cal_dot_com/Tennis" {
		t.Errorf("Identifier() = %q", got)
	}
}

func TestSyncResultRecordError(t *testing.T) {
	var result SyncResult
	result.RecordError("google_calendar/evt-1", "insert failed")
	result.RecordError("google_calendar/evt-2", "insert failed")

	if result.ErrorCount != 2 || len(result.Errors) != 2 {
		t.Fatalf("got ErrorCount=%d Errors=%d", result.ErrorCount, len(result.Errors))
	}
	if result.Errors[0].EventIdentifier != "google_calendar/evt-1" {
		t.Errorf("unexpected first error: %+v", result.Errors[0])
	}
}
