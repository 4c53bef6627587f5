package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestOpenSession_UnknownPatient(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/sessions", gin.H{"patient_id": 404}, nil)
	if w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("unknown patient: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/sessions", gin.H{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing patient_id: %d", w.Code)
	}
}

func TestPostMessage_AssignsSequence(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	for i := 1; i <= 3; i++ {
		var resp PostMessageResponse
		w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/messages", sid), gin.H{
			"sender":       "patient",
			"message_text": "Mfite umuriro",
		}, &resp)
		if w.Code != http.StatusCreated {
			t.Fatalf("turn %d: %d %s", i, w.Code, w.Body.String())
		}
		if resp.Message.SequenceNumber != i {
			t.Fatalf("turn %d got sequence %d", i, resp.Message.SequenceNumber)
		}
	}
}

func TestPostMessage_IdempotentReplay(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	body := gin.H{"sender": "patient", "message_text": "Mfite umuriro"}
	hdr := map[string]string{"Idempotency-Key": "retry-turn-1"}

	var first PostMessageResponse
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/messages", sid), body, &first, hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("fresh append: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatal("fresh append must not be marked replayed")
	}

	// Retried request returns the original message, not a new turn.
	var replay PostMessageResponse
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/messages", sid), body, &replay, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("replay: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("replay header missing")
	}
	if replay.Message.ID != first.Message.ID || replay.Message.SequenceNumber != first.Message.SequenceNumber {
		t.Fatalf("replay returned a different message: %+v vs %+v", replay.Message, first.Message)
	}

	// No duplicate turn was stored.
	var list ListMessagesResponse
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/sessions/%d/messages", sid), nil, &list)
	if w.Code != http.StatusOK || list.Pagination.Total != 1 {
		t.Fatalf("expected 1 stored message: %s", w.Body.String())
	}
}

func TestPostMessage_CompletedSession(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/close", sid), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/messages", sid), gin.H{
		"sender": "patient", "message_text": "too late",
	}, nil)
	if w.Code != http.StatusConflict || errCode(t, w) != ErrCodeInvalidState {
		t.Fatalf("append to closed session: %d %s", w.Code, w.Body.String())
	}
}

func TestListMessages_Pagination(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	for i := 0; i < 5; i++ {
		w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/messages", sid), gin.H{
			"sender": "ml_system", "message_text": "turn",
		}, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("append %d: %d", i, w.Code)
		}
	}

	var list ListMessagesResponse
	w := doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/sessions/%d/messages?page=2&page_size=2", sid), nil, &list)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	if list.Pagination.Total != 5 || list.Pagination.TotalPages != 3 || !list.Pagination.HasNext {
		t.Fatalf("pagination metadata wrong: %+v", list.Pagination)
	}
	if len(list.Messages) != 2 || list.Messages[0].SequenceNumber != 3 {
		t.Fatalf("page window wrong: %+v", list.Messages)
	}
}

func TestSymptoms_RecordAndList(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/symptoms", sid), gin.H{
		"symptom_name": "fever",
		"severity":     "moderate",
		"duration":     "3 days",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("record symptom: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/symptoms", sid), gin.H{
		"symptom_name": "fever", "severity": "catastrophic",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad severity: %d", w.Code)
	}

	var list struct {
		Symptoms []struct {
			SymptomName string `json:"symptom_name"`
		} `json:"symptoms"`
	}
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/sessions/%d/symptoms", sid), nil, &list)
	if w.Code != http.StatusOK || len(list.Symptoms) != 1 || list.Symptoms[0].SymptomName != "fever" {
		t.Fatalf("list symptoms: %d %s", w.Code, w.Body.String())
	}
}

func TestCloseSession_Idempotent(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	var first struct {
		Status  string  `json:"status"`
		EndedAt *string `json:"ended_at"`
	}
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/close", sid), nil, &first)
	if w.Code != http.StatusOK || first.Status != "completed" || first.EndedAt == nil {
		t.Fatalf("close: %d %s", w.Code, w.Body.String())
	}

	var second struct {
		EndedAt *string `json:"ended_at"`
	}
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/close", sid), nil, &second)
	if w.Code != http.StatusOK {
		t.Fatalf("re-close: %d", w.Code)
	}
	if second.EndedAt == nil || *second.EndedAt != *first.EndedAt {
		t.Fatalf("end time changed on re-close: %v vs %v", first.EndedAt, second.EndedAt)
	}
}

func TestDeleteSession(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	wid := registerWorker(t, r)
	sid := openSession(t, r, pid)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/prescriptions", sid), gin.H{
		"worker_id":       wid,
		"medication_name": "Coartem",
		"dosage":          "1x",
		"instructions":    "as directed",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("prescribe: %d %s", w.Code, w.Body.String())
	}

	// Sessions with prescriptions are protected.
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/sessions/%d", sid), nil, nil)
	if w.Code != http.StatusConflict || errCode(t, w) != ErrCodeInvalidState {
		t.Fatalf("delete prescribed session: %d %s", w.Code, w.Body.String())
	}

	other := openSession(t, r, pid)
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/sessions/%d", other), nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete bare session: %d", w.Code)
	}
}

func TestRecordSymptom_CompletedSession(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/close", sid), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/symptoms", sid), gin.H{
		"symptom_name": "fever",
	}, nil)
	if w.Code != http.StatusConflict || errCode(t, w) != ErrCodeInvalidState {
		t.Fatalf("symptom on completed session: %d %s", w.Code, w.Body.String())
	}
}

func TestUpdateSessionNotes(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	sid := openSession(t, r, pid)

	// The notes key itself is required.
	w := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/sessions/%d/notes", sid), gin.H{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing notes: %d", w.Code)
	}

	var s struct {
		Notes *string `json:"notes"`
	}
	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/sessions/%d/notes", sid), gin.H{
		"notes": "follow up in two days",
	}, &s)
	if w.Code != http.StatusOK || s.Notes == nil || *s.Notes != "follow up in two days" {
		t.Fatalf("patch notes: %d %s", w.Code, w.Body.String())
	}

	// Still editable after closure.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%d/close", sid), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close: %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/sessions/%d/notes", sid), gin.H{
		"notes": "resolved",
	}, &s)
	if w.Code != http.StatusOK || s.Notes == nil || *s.Notes != "resolved" {
		t.Fatalf("patch notes after close: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPatch, "/sessions/404/notes", gin.H{"notes": "x"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", w.Code)
	}
}

func TestListPatientSessions(t *testing.T) {
	r, _ := newTestAPI(t)
	pid := registerPatient(t, r)
	openSession(t, r, pid)
	openSession(t, r, pid)

	var list struct {
		Sessions []struct {
			ID uint `json:"id"`
		} `json:"sessions"`
	}
	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/patients/%d/sessions", pid), nil, &list)
	if w.Code != http.StatusOK || len(list.Sessions) != 2 {
		t.Fatalf("list sessions: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/patients/404/sessions", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown patient: %d", w.Code)
	}
}
