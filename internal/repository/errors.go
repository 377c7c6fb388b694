package repository

import "errors"

var ErrNotFound = errors.New("запись не найдена")

// ErrActiveSession возвращается при попытке создать вторую активную
// сессию для одной задачи (инвариант одного активного таймера)
var ErrActiveSession = errors.New("активная сессия уже существует")

var ErrVersionConflict = errors.New("конфликт версий")
