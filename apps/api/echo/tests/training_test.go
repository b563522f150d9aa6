package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/services/email"
	"github.com/cadence/academy/tests"
)

func submission(t *testing.T, answers ...assessment.Answer) []byte {
	return marchallObj(t, assessment.Submission{Answers: answers})
}

func TestServer_modules(t *testing.T) {
	f := setup(t)
	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	mod2 := testutil.CreateModule(t, f.catalog, 2, "Practice")
	q := testutil.CreateMCQ(t, f.questions, training.ModuleUnit(mod1.ID), 1, 10)

	trainee := testutil.CreateUser(t, f.users, "Trainee", "trainee@test.cd", pwd, user.RoleTrainee, "")
	trainee = testutil.CompleteProfile(t, f.users, f.profiles, trainee)
	token := f.token(t, trainee)

	listModules := func(t *testing.T) []training.ModuleState {
		rec := f.do(http.MethodGet, "/api/modules", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var states []training.ModuleState
		decode(t, rec, &states)
		require.Len(t, states, 2)
		return states
	}

	states := listModules(t)
	assert.Equal(t, mod1.ID, states[0].Module.ID)
	assert.Empty(t, states[0].Module.Transcript)
	assert.Equal(t, training.Decision{Unlocked: true, Reason: training.ReasonFirstModule}, states[0].Access)
	assert.Equal(t, training.StatusNotStarted, states[0].Progress.Status)
	assert.Equal(t, training.Decision{Reason: training.ReasonPreviousModuleIncomplete, RequiredModuleID: mod1.ID}, states[1].Access)

	t.Run("Locked module", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/modules/"+mod2.ID, token)
		require.Equal(t, http.StatusForbidden, rec.Code)
		var resp admissionErr
		decode(t, rec, &resp)
		assert.Equal(t, string(training.ReasonPreviousModuleIncomplete), resp.Reason)
		assert.Equal(t, mod1.ID, resp.Detail["required_module_id"])

		rec = f.do(http.MethodPost, "/api/modules/"+mod2.ID+"/video", token, []byte(`{"percentage": 10}`))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Unknown module", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/modules/lol", token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "module not found"})}, rec)
	})

	t.Run("Unlocked module", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/modules/"+mod1.ID, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var state training.ModuleState
		decode(t, rec, &state)
		assert.Equal(t, "transcript of Foundations", state.Module.Transcript)
	})

	t.Run("Video & transcript", func(t *testing.T) {
		path := "/api/modules/" + mod1.ID
		runHTTPTests(t, f, []httpTest{
			{
				name: "Missing percentage", method: http.MethodPost, path: path + "/video", body: []byte(`{}`), token: token,
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"percentage": "this field is required"}),
			},
			{
				name: "Percentage out of range", method: http.MethodPost, path: path + "/video", body: []byte(`{"percentage": 101}`), token: token,
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"percentage": "percentage must be between 0 and 100"}),
			},
		})

		rec := f.do(http.MethodPost, path+"/video", token, []byte(`{"percentage": 50}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p training.Progress
		decode(t, rec, &p)
		assert.Equal(t, training.StatusInProgress, p.Status)
		assert.False(t, p.VideoWatched)
		assert.Equal(t, 50, p.VideoWatchPercentage)

		rec = f.do(http.MethodPost, path+"/video", token, []byte(`{"percentage": 95}`))
		decode(t, rec, &p)
		assert.True(t, p.VideoWatched)

		// watch percentage never decreases
		rec = f.do(http.MethodPost, path+"/video", token, []byte(`{"percentage": 20}`))
		decode(t, rec, &p)
		assert.Equal(t, 95, p.VideoWatchPercentage)
		assert.True(t, p.VideoWatched)

		rec = f.do(http.MethodPost, path+"/transcript", token)
		decode(t, rec, &p)
		assert.True(t, p.TranscriptViewed)
	})

	t.Run("Assessment", func(t *testing.T) {
		path := "/api/modules/" + mod1.ID + "/assessment"

		rec := f.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "is_correct")
		assert.NotContains(t, rec.Body.String(), "correct_answer")

		rec = f.do(http.MethodGet, path+"/eligibility", token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"can_retake": true}`)}, rec)

		rec = f.do(http.MethodPost, path, token, []byte(`{"answers": []}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(http.MethodPost, path, token, submission(t, assessment.Answer{QuestionID: q.ID, Answer: " b "}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var result assessment.Result
		decode(t, rec, &result)
		assert.True(t, result.Passed)
		assert.Equal(t, 100, result.Percentage)
		assert.Equal(t, 1, result.AttemptNumber)
		assert.Equal(t, training.StatusCompleted, result.Progress.Status)

		msgs := emailsvc.SentTo(trainee.Email)
		assert.Len(t, msgs, 2) // passed & module completed

		// retake cooldown
		rec = f.do(http.MethodPost, path, token, submission(t, assessment.Answer{QuestionID: q.ID, Answer: "A"}))
		require.Equal(t, http.StatusForbidden, rec.Code)
		var resp admissionErr
		decode(t, rec, &resp)
		assert.Equal(t, assessment.ReasonRetakeCooldown, resp.Reason)
		assert.Equal(t, "you can retake this assessment in 24 hour(s)", resp.Error)
		assert.Equal(t, false, resp.Detail["can_retake"])
	})

	states = listModules(t)
	assert.True(t, states[0].Complete)
	assert.Equal(t, training.Decision{Unlocked: true, Reason: training.ReasonRequirementsMet}, states[1].Access)
}

func TestServer_trainingAdmission(t *testing.T) {
	f := setup(t)
	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	q := testutil.CreateMCQ(t, f.questions, training.ModuleUnit(mod1.ID), 1, 10)

	incomplete := testutil.CreateUser(t, f.users, "Incomplete", "incomplete@test.cd", pwd, user.RoleTrainee, "")
	instructor := testutil.CreateUser(t, f.users, "Instructor", "instructor@test.cd", pwd, user.RoleInstructor, "")
	patient := testutil.CreateUser(t, f.users, "Patient", "patient@test.cd", pwd, user.RolePatient, "")

	t.Run("Role required", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/modules", f.token(t, patient))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("Listing is not gated", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/modules", f.token(t, incomplete))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	for _, path := range []string{
		"/api/modules/" + mod1.ID,
		"/api/modules/" + mod1.ID + "/assessment",
	} {
		t.Run(fmt.Sprintf("Profile incomplete %s", path), func(t *testing.T) {
			rec := f.do(http.MethodGet, path, f.token(t, incomplete))
			require.Equal(t, http.StatusForbidden, rec.Code)
			var resp admissionErr
			decode(t, rec, &resp)
			assert.Equal(t, profile.ReasonProfileIncomplete, resp.Reason)
			assert.Equal(t, float64(0), resp.Detail["percentage"])
		})
	}

	t.Run("Staff bypass the profile gate", func(t *testing.T) {
		token := f.token(t, instructor)
		rec := f.do(http.MethodGet, "/api/modules/"+mod1.ID, token)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(http.MethodPost, "/api/modules/"+mod1.ID+"/assessment", token,
			submission(t, assessment.Answer{QuestionID: q.ID, Answer: "A"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var result assessment.Result
		decode(t, rec, &result)
		assert.False(t, result.Passed)
		assert.Equal(t, 0, result.Percentage)
		assert.Equal(t, training.StatusInProgress, result.Progress.Status)
	})

	t.Run("No assessment", func(t *testing.T) {
		mod2 := testutil.CreateModule(t, f.catalog, 2, "Empty")
		rec := f.do(http.MethodGet, "/api/modules/"+mod2.ID+"/assessment", f.token(t, instructor))
		// module 2 is locked until module 1 is passed
		assert.Equal(t, http.StatusForbidden, rec.Code)

		testutil.PassUnit(t, f.store, instructor.ID, training.ModuleUnit(mod1.ID), 90)
		rec = f.do(http.MethodGet, "/api/modules/"+mod2.ID+"/assessment", f.token(t, instructor))
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assessment not found"})}, rec)
	})
}

func TestServer_sections(t *testing.T) {
	f := setup(t)
	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	secA := testutil.CreateSection(t, f.catalog, mod1.ID, "1A", 1)
	secB := testutil.CreateSection(t, f.catalog, mod1.ID, "1B", 2)
	mod2 := testutil.CreateModule(t, f.catalog, 2, "Practice")

	trainee := testutil.CreateUser(t, f.users, "Trainee", "trainee@test.cd", pwd, user.RoleTrainee, "")
	trainee = testutil.CompleteProfile(t, f.users, f.profiles, trainee)
	token := f.token(t, trainee)

	rec := f.do(http.MethodGet, "/api/sections/"+secA.ID, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state training.SectionState
	decode(t, rec, &state)
	assert.Equal(t, training.ReasonFirstSection, state.Access.Reason)

	// a module with sections is worked on through them only
	for _, path := range []string{"/video", "/transcript", "/assessment"} {
		rec = f.do(http.MethodPost, "/api/modules/"+mod1.ID+path, token, []byte(`{"percentage": 10, "answers": [{"question_id": "q1", "answer": "B"}]}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "module is composed of sections; work on its sections instead"})}, rec)
	}

	rec = f.do(http.MethodGet, "/api/sections/"+secB.ID, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp admissionErr
	decode(t, rec, &resp)
	assert.Equal(t, string(training.ReasonPreviousSectionIncomplete), resp.Reason)
	assert.Equal(t, secA.ID, resp.Detail["required_section_id"])

	// a passed assessment alone does not complete a section
	_, err := f.store.RecordAttempt(context.Background(), trainee.ID, training.SectionUnit(secA.ID), training.Attempt{Score: 90, Passed: true})
	require.NoError(t, err)
	rec = f.do(http.MethodGet, "/api/sections/"+secB.ID, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	testutil.PassUnit(t, f.store, trainee.ID, training.SectionUnit(secA.ID), 85)
	rec = f.do(http.MethodGet, "/api/sections/"+secB.ID, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/modules/"+mod2.ID, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, secB.ID, resp.Detail["required_section_id"])

	testutil.PassUnit(t, f.store, trainee.ID, training.SectionUnit(secB.ID), 70)
	rec = f.do(http.MethodGet, "/api/modules/"+mod2.ID, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, string(training.ReasonScoreTooLow), resp.Reason)
	assert.Equal(t, float64(80), resp.Detail["required_score"])
	assert.Equal(t, float64(70), resp.Detail["current_score"])
}

func TestServer_unitRoutes(t *testing.T) {
	f := setup(t)
	mod1 := testutil.CreateModule(t, f.catalog, 1, "Foundations")
	testutil.CreateMCQ(t, f.questions, training.ModuleUnit(mod1.ID), 1, 10)
	mod2 := testutil.CreateModule(t, f.catalog, 2, "Practice")
	sec := testutil.CreateSection(t, f.catalog, mod2.ID, "2A", 1)
	testutil.CreateMCQ(t, f.questions, training.SectionUnit(sec.ID), 1, 10)

	trainee := testutil.CreateUser(t, f.users, "Trainee", "trainee@test.cd", pwd, user.RoleTrainee, "")
	trainee = testutil.CompleteProfile(t, f.users, f.profiles, trainee)
	testutil.PassUnit(t, f.store, trainee.ID, training.ModuleUnit(mod1.ID), 90)
	token := f.token(t, trainee)

	for _, base := range []string{"/api/modules/" + mod1.ID, "/api/sections/" + sec.ID} {
		tests := []struct {
			method string
			path   string
			body   []byte
			want   int
		}{
			{method: http.MethodGet, path: base, want: http.StatusOK},
			{method: http.MethodPost, path: base + "/video", body: []byte(`{"percentage": 10}`), want: http.StatusOK},
			{method: http.MethodPost, path: base + "/transcript", want: http.StatusOK},
			{method: http.MethodGet, path: base + "/assessment", want: http.StatusOK},
			{method: http.MethodGet, path: base + "/assessment/eligibility", want: http.StatusOK},
			{method: http.MethodGet, path: base + "/unknown", want: http.StatusNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.method+" "+tt.path, func(t *testing.T) {
				var data [][]byte
				if tt.body != nil {
					data = append(data, tt.body)
				}
				rec := f.do(tt.method, tt.path, token, data...)
				assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			})
		}
	}

	// the module the section belongs to also answers on its own id
	rec := f.do(http.MethodGet, "/api/modules/"+mod2.ID, token)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
