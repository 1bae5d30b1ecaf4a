package drive

import "github.com/edaniels/golog"

type Dummy struct {
	log golog.Logger
}

func NewDummy(logger golog.Logger) *Dummy {
	return &Dummy{log: logger}
}

var _ Interface = (*Dummy)(nil)

func (d *Dummy) DriveForward(left, right float64) {
	d.log.Infof("DRV: forward left=%.1f right=%.1f", left, right)
}

func (d *Dummy) DriveReverse() {
	d.log.Info("DRV: reverse")
}

func (d *Dummy) Stop() {
	d.log.Info("DRV: stop")
}

func (d *Dummy) PivotLeft() {
	d.log.Info("DRV: pivot left")
}

func (d *Dummy) PivotRight() {
	d.log.Info("DRV: pivot right")
}
