package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProvider      = errors.New("Неизвестный провайдер кошелька.")
	ErrProviderNotInstalled = errors.New("Провайдер кошелька не установлен.")
	ErrAlreadyConnected     = errors.New("Кошелёк уже подключён.")
	ErrConnectInProgress    = errors.New("Подключение кошелька уже выполняется.")
	ErrConnectCanceled      = errors.New("Подключение кошелька отменено.")
	ErrNotConnected         = errors.New("Кошелёк не подключён.")
	ErrInvalidTxType        = errors.New("Неизвестный тип транзакции.")
	ErrInvalidAmount        = errors.New("Сумма должна быть положительным конечным числом.")
	ErrInvalidAsset         = errors.New("Неизвестный актив.")
	ErrCorruptSnapshot      = errors.New("Снимок кошелька повреждён.")
	ErrStopped              = errors.New("Симулятор кошелька остановлен.")
)

type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Не удалось подключить кошелёк %q: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
