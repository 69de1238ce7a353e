package surface

import (
	"github.com/OCAP2/annotator/internal/dispatcher"
)

// Input commands handled by an editable surface.
const (
	CmdPointerDown  = ":POINTER:DOWN:"
	CmdPointerMove  = ":POINTER:MOVE:"
	CmdPointerUp    = ":POINTER:UP:"
	CmdClick        = ":CLICK:"
	CmdKey          = ":KEY:"
	CmdDragEnd      = ":DRAG:END:"
	CmdTransformEnd = ":TRANSFORM:END:"
)

func (s *Surface) attachListeners() {
	d := s.opts.Dispatcher
	s.listen(d, CmdPointerDown, s.pointerHandler(s.PointerDown))
	s.listen(d, CmdPointerMove, s.pointerHandler(s.PointerMove))
	s.listen(d, CmdPointerUp, s.pointerHandler(s.PointerUp))
	s.listen(d, CmdClick, s.pointerHandler(s.Click))
	s.listen(d, CmdKey, s.handleKey)
	s.listen(d, CmdDragEnd, s.editHandler(s.DragEnd))
	s.listen(d, CmdTransformEnd, s.editHandler(s.TransformEnd))
}

func (s *Surface) listen(d *dispatcher.Dispatcher, cmd string, h dispatcher.HandlerFunc) {
	d.Register(cmd, h, dispatcher.Logged())
	s.listeners = append(s.listeners, cmd)
}

func (s *Surface) detachListeners() {
	if s.opts.Dispatcher == nil {
		s.listeners = nil
		return
	}
	for _, cmd := range s.listeners {
		s.opts.Dispatcher.Unregister(cmd)
	}
	s.listeners = nil
}

// pointerHandler parses "x","y" and runs fn through the owner's executor.
func (s *Surface) pointerHandler(fn func(x, y float64)) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		xy, err := e.Floats(2)
		if err != nil {
			return nil, err
		}
		s.opts.Exec(func() { fn(xy[0], xy[1]) })
		return nil, nil
	}
}

// editHandler parses "id","a","b" for drag and transform ends.
func (s *Surface) editHandler(fn func(id string, a, b float64)) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		id := e.Arg(0)
		a, err := e.Float(1)
		if err != nil {
			return nil, err
		}
		b, err := e.Float(2)
		if err != nil {
			return nil, err
		}
		s.opts.Exec(func() { fn(id, a, b) })
		return nil, nil
	}
}

func (s *Surface) handleKey(e dispatcher.Event) (any, error) {
	key := e.Arg(0)
	s.opts.Exec(func() { s.Key(key) })
	return nil, nil
}
