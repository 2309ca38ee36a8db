package schedule

import (
	appLog "evcal/internal/log"
)

// Variant is the toast style.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

// Notifier is the side channel that tells the user how an operation went.
type Notifier interface {
	Notify(variant Variant, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(variant Variant, message string)

func (f NotifierFunc) Notify(variant Variant, message string) {
	f(variant, message)
}

// LogNotifier writes toasts to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(variant Variant, message string) {
	if variant == VariantError {
		appLog.Warn("toast", "variant", variant, "message", message)
		return
	}
	appLog.Info("toast", "variant", variant, "message", message)
}
