package tracker

// Notifier shows one blocking message to the user.
type Notifier interface {
	Notify(message string)
}

type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

type discardNotifier struct{}

func (discardNotifier) Notify(string) {}
