package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role, status string,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleTrainee
	}
	if status == "" {
		status = user.StatusActive
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CompleteProfile fills every required profile field and adds one education & one employment entry.
func CompleteProfile(t *testing.T, users user.Repository, profiles profile.Repository, usr user.User) user.User {
	ctx := context.Background()
	usr.Profile = user.Profile{
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Phone:            "+243 810 000 000",
		Age:              36,
		StreetAddress:    "12 Avenue de la Paix",
		City:             "Kinshasa",
		State:            "Kinshasa",
		ZipCode:          "00243",
		HighestEducation: "Masters",
	}
	usr, err := users.UpdateUser(ctx, usr)
	if err != nil {
		t.Fatalf("CompleteProfile() failed: %v", err)
	}
	if _, err = profiles.CreateEducation(ctx, profile.EducationEntry{
		UserID: usr.ID, Institution: "UNIKIN", Degree: "BSc", StartDate: "2010-09-01", EndDate: "2014-06-30",
	}); err != nil {
		t.Fatalf("CompleteProfile() failed: %v", err)
	}
	if _, err = profiles.CreateEmployment(ctx, profile.EmploymentEntry{
		UserID: usr.ID, Employer: "Cadence", Position: "Facilitator", StartDate: "2015-01-01",
	}); err != nil {
		t.Fatalf("CompleteProfile() failed: %v", err)
	}
	return usr
}

func CreateModule(t *testing.T, catalog training.Catalog, number int, title string) training.Module {
	mod, err := catalog.CreateModule(context.Background(), training.Module{
		Number:     number,
		Title:      title,
		VideoURL:   "https://videos.test/" + title,
		Transcript: "transcript of " + title,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

func CreateSection(t *testing.T, catalog training.Catalog, moduleID, code string, position int) training.Section {
	sec, err := catalog.CreateSection(context.Background(), training.Section{
		ModuleID:   moduleID,
		Code:       code,
		Position:   position,
		Title:      "Section " + code,
		Transcript: "transcript of " + code,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	return sec
}

// CreateMCQ adds a multiple-choice question whose correct option is "B".
func CreateMCQ(t *testing.T, repo assessment.Repository, unit training.Unit, position, points int) assessment.Question {
	q, err := repo.CreateQuestion(context.Background(), assessment.Question{
		Unit:          unit,
		Type:          assessment.TypeMultipleChoice,
		Prompt:        "Pick B",
		CorrectAnswer: "B",
		Points:        points,
		Position:      position,
		Options: []assessment.Option{
			{Letter: "A", Text: "not this one"},
			{Letter: "B", Text: "this one", IsCorrect: true},
			{Letter: "C", Text: "nope"},
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateMCQ() failed: %v", err)
	}
	return q
}

// PassUnit records a passed attempt with the given score and marks the video watched and the transcript viewed.
func PassUnit(t *testing.T, store training.Store, userID string, unit training.Unit, score int) training.Progress {
	ctx := context.Background()
	watched, viewed, pct := true, true, 100
	if _, err := store.UpsertProgress(ctx, userID, unit, training.ProgressUpdate{
		VideoWatched: &watched, VideoWatchPercentage: &pct, TranscriptViewed: &viewed,
	}); err != nil {
		t.Fatalf("PassUnit() failed: %v", err)
	}
	p, err := store.RecordAttempt(ctx, userID, unit, training.Attempt{
		Score: score, Passed: score >= 80, At: time.Now().UTC().Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("PassUnit() failed: %v", err)
	}
	return p
}
