package rummy

import "errors"

// Contract failures. A call that returns one of these leaves the Match untouched.
// Ordinary rule outcomes (card not held, bad meld, empty stack) are reported as
// false results instead.
var (
	ErrInvalidPlayerCount = errors.New("rummy: a match needs 2 to 4 players")
	ErrDuplicatePlayer    = errors.New("rummy: duplicate player")
	ErrInvalidDeck        = errors.New("rummy: deck is not a standard 52-card deck")
	ErrInvalidPlayer      = errors.New("rummy: unknown player")
	ErrInvalidMeldType    = errors.New("rummy: meld type must be set or run")
	ErrNotYourTurn        = errors.New("rummy: not your turn")
	ErrGameOver           = errors.New("rummy: game already over")
)
