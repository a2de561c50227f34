package actuator

import "time"

// Beep sounds the buzzer for d. The buzzer is always switched off afterwards
// if it was switched on.
func (s *State) Beep(d time.Duration) error {
	if err := s.SetAlarm(true); err != nil {
		return err
	}
	s.sleep(d)
	return s.SetAlarm(false)
}

// SignalAlert plays the motion alert: two short beeps, then the indicator
// flashes the alert color before returning to OK.
func (s *State) SignalAlert() error {
	if err := s.Beep(AlertBeep); err != nil {
		return err
	}
	s.sleep(AlertGap)
	if err := s.Beep(AlertBeep); err != nil {
		return err
	}
	if err := s.SetColor(ColorAlert); err != nil {
		return err
	}
	s.sleep(AlertFlash)
	return s.SetColor(ColorOK)
}

// SignalConfirm plays a very short beep.
func (s *State) SignalConfirm() error {
	return s.Beep(ConfirmBeep)
}

// SignalFault shows the fault color.
func (s *State) SignalFault() error {
	return s.SetColor(ColorFault)
}

// SignalReady shows the OK color.
func (s *State) SignalReady() error {
	return s.SetColor(ColorOK)
}
