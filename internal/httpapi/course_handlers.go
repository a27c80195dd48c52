package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"coursehub.org/internal/audit"
	"coursehub.org/internal/course"
	"coursehub.org/internal/ids"
)

type questionRequest struct {
	Question string `json:"question"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

type replyRequest struct {
	Comment string `json:"comment"`
}

// validCourseID rejects malformed course ids before any store is consulted.
func validCourseID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ids.Valid(chi.URLParam(r, "courseID")) {
			writeError(w, r, http.StatusNotFound, "course not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleListCourses(w http.ResponseWriter, r *http.Request) {
	all, err := a.catalog.All(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	previews := make([]*course.Course, 0, len(all))
	for _, c := range all {
		previews = append(previews, c.Preview())
	}
	writeSuccess(w, http.StatusOK, map[string]any{"courses": previews})
}

func (a *API) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := a.catalog.Get(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"course": c.Preview()})
}

func (a *API) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var draft course.Course
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	c, err := a.engine.Create(r.Context(), draft)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "course.create", map[string]string{"course_id": c.ID})
	writeSuccess(w, http.StatusCreated, map[string]any{"course": c})
}

func (a *API) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	var draft course.Course
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	c, err := a.engine.Update(r.Context(), courseID, draft)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "course.update", map[string]string{"course_id": courseID})
	writeSuccess(w, http.StatusOK, map[string]any{"course": c})
}

func (a *API) handleContent(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	content, err := a.engine.Content(r.Context(), p, chi.URLParam(r, "courseID"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"content": content})
}

func (a *API) handlePostQuestion(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	courseID, contentID := chi.URLParam(r, "courseID"), chi.URLParam(r, "contentID")
	c, err := a.engine.PostQuestion(r.Context(), p, courseID, contentID, req.Question)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "course.question.create", map[string]string{
		"course_id":  courseID,
		"content_id": contentID,
	})
	writeSuccess(w, http.StatusOK, map[string]any{"course": c})
}

func (a *API) handlePostAnswer(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	courseID := chi.URLParam(r, "courseID")
	contentID := chi.URLParam(r, "contentID")
	questionID := chi.URLParam(r, "questionID")
	c, err := a.engine.PostAnswer(r.Context(), p, courseID, contentID, questionID, req.Answer)
	if c != nil {
		_ = audit.LogEvent(r.Context(), "course.answer.create", map[string]string{
			"course_id":   courseID,
			"content_id":  contentID,
			"question_id": questionID,
		})
	}
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"course": c})
}

func (a *API) handlePostReview(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	courseID := chi.URLParam(r, "courseID")
	c, err := a.engine.PostReview(r.Context(), p, courseID, req.Rating, req.Review)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "course.review.create", map[string]string{"course_id": courseID})
	writeSuccess(w, http.StatusOK, map[string]any{"course": c})
}

func (a *API) handleReplyToReview(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req replyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	courseID, reviewID := chi.URLParam(r, "courseID"), chi.URLParam(r, "reviewID")
	c, err := a.engine.ReplyToReview(r.Context(), p, courseID, reviewID, req.Comment)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "course.review.reply", map[string]string{
		"course_id": courseID,
		"review_id": reviewID,
	})
	writeSuccess(w, http.StatusOK, map[string]any{"course": c})
}
