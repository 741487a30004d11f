package service

import "github.com/pkg/errors"

// Таксономия ошибок фетча. Всё остальное считается транзиентной
// сетевой ошибкой и уходит в ретрай.
var (
	// ErrRateLimited — 429 или биржевой код лимита; ретраим с удлинённым бэкоффом.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidData — кривой пейлоад; символ пропускается до следующего цикла, без ретрая.
	ErrInvalidData = errors.New("invalid data")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
func IsInvalidData(err error) bool { return errors.Is(err, ErrInvalidData) }
