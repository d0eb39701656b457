package trivia

import (
	"errors"
)

// Code classifies a failed trivia operation.
type Code string

const (
	CodeInternal         Code = "internal"
	CodeSessionExists    Code = "session_exists"
	CodeNoSession        Code = "no_session"
	CodeNotCreator       Code = "not_creator"
	CodeNoQuestions      Code = "no_questions"
	CodeNoActiveQuestion Code = "no_active_question"
	CodeAlreadyAnswered  Code = "already_answered"
	CodeQuestionMissing  Code = "question_missing"
	CodeInvalidQuestion  Code = "invalid_question"
	CodeInvalidAnswer    Code = "invalid_answer"
)

// Error is the error value returned by every Service operation. Message is
// safe to show to players; Cause is only for logs.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the code carried by err, or CodeInternal for errors that
// did not originate in this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

var (
	ErrSessionExists = newError(CodeSessionExists,
		"There is already an active trivia session in this channel. Use !trivia stop to end it first.")
	ErrNoSession = newError(CodeNoSession,
		"No active trivia session found in this channel.")
	ErrNotCreator = newError(CodeNotCreator,
		"Only the session creator can stop the trivia session.")
	ErrNoQuestions = newError(CodeNoQuestions,
		"No trivia questions available. Add some questions first using `!trivia add`.")
	ErrNoActiveQuestion = newError(CodeNoActiveQuestion,
		"No active question found in this channel.")
	ErrAlreadyAnswered = newError(CodeAlreadyAnswered,
		"You have already answered this question.")
	ErrQuestionMissing = newError(CodeQuestionMissing,
		"Question not found.")
	ErrQuestionTooShort = newError(CodeInvalidQuestion,
		"Question must be at least 10 characters long.")
	ErrEmptyAnswer = newError(CodeInvalidAnswer,
		"Answer cannot be empty.")
)
