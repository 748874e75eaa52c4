package winio

import (
	"time"

	"github.com/go-vgo/robotgo"
)

// Input injects mouse, keyboard, and clipboard events. Flows take it
// as an interface so tests can record actions instead of moving the
// real cursor.
type Input interface {
	Click(x, y int)
	DoubleClick(x, y int)
	Move(x, y int)
	Scroll(amount int)
	KeyTap(key string, modifiers ...string)
	TypeText(text string)
	SetClipboard(text string) error
	Clipboard() (string, error)
	Sleep(d time.Duration)
}

// Robot drives the real desktop via robotgo.
type Robot struct{}

func NewRobot() *Robot { return &Robot{} }

func (r *Robot) Click(x, y int) {
	robotgo.Move(x, y)
	robotgo.MilliSleep(30)
	robotgo.Click("left", false)
}

func (r *Robot) DoubleClick(x, y int) {
	robotgo.Move(x, y)
	robotgo.MilliSleep(30)
	robotgo.Click("left", true)
}

func (r *Robot) Move(x, y int) {
	robotgo.Move(x, y)
}

// Scroll moves the wheel; positive amounts scroll up.
func (r *Robot) Scroll(amount int) {
	robotgo.Scroll(0, amount)
}

func (r *Robot) KeyTap(key string, modifiers ...string) {
	args := make([]interface{}, len(modifiers))
	for i, m := range modifiers {
		args[i] = m
	}
	robotgo.KeyTap(key, args...)
}

func (r *Robot) TypeText(text string) {
	robotgo.TypeStr(text)
}

func (r *Robot) SetClipboard(text string) error {
	return robotgo.WriteAll(text)
}

func (r *Robot) Clipboard() (string, error) {
	return robotgo.ReadAll()
}

func (r *Robot) Sleep(d time.Duration) {
	time.Sleep(d)
}
