package matcherrors

import "errors"

// Lobby, directory and move sentinel errors. Shared by lobby, directory, game,
// ws and api to avoid circular imports.
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not in any game")

	ErrNameRequired       = errors.New("name is required")
	ErrNameTooLong        = errors.New("name is too long")
	ErrNameTaken          = errors.New("a player with this name is already waiting")
	ErrInvalidPlayerCount = errors.New("must specify 2-4 player names")
	ErrPlayersNotWaiting  = errors.New("players not found in waiting room")
	ErrDuplicateNames     = errors.New("player names must be distinct")
	ErrUnknownBot         = errors.New("no such computer player")

	ErrUnknownMove      = errors.New("unknown move")
	ErrInvalidCard      = errors.New("invalid card")
	ErrInvalidMeldType  = errors.New("meld type must be 'set' or 'run'")
	ErrStackEmpty       = errors.New("stack is empty")
	ErrCardNotInDiscard = errors.New("card not found in discard pile")
	ErrInvalidMeld      = errors.New("invalid meld or cards not in hand")
	ErrCardNotInHand    = errors.New("card not found in hand")
)
