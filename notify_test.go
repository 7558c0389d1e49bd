// SPDX-License-Identifier: MIT

package unitd

import (
	"reflect"
	"testing"

	"github.com/unitd-project/unitd/unitconf"
)

func TestSplitDatagramHandlesNewlineAndNUL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"single line", "READY=1", []string{"READY=1"}},
		{"newline separated", "STATUS=a\nSTATUS=b", []string{"STATUS=a", "STATUS=b"}},
		{"nul separated", "READY=1\x00STATUS=up", []string{"READY=1", "STATUS=up"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := splitDatagram([]byte(c.in)); !reflect.DeepEqual(got, c.want) {
				t.Errorf("splitDatagram(%q) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestApplyNotifyMessageReady(t *testing.T) {
	svc := newServicePayload(unitconf.ServiceConfig{})
	applyNotifyMessage(svc, []byte("STATUS=starting up\nREADY=1"))

	if !svc.isReady() {
		t.Error("READY=1 should mark the service ready")
	}
	if got := svc.StatusMessages(); len(got) != 1 || got[0] != "starting up" {
		t.Errorf("StatusMessages() = %v, want [\"starting up\"]", got)
	}
}

func TestApplyNotifyMessageReadyZeroDoesNotReady(t *testing.T) {
	svc := newServicePayload(unitconf.ServiceConfig{})
	applyNotifyMessage(svc, []byte("READY=0"))
	if svc.isReady() {
		t.Error("READY=0 should not mark the service ready")
	}
}

func TestApplyNotifyMessageUnknownKeyIsLogged(t *testing.T) {
	svc := newServicePayload(unitconf.ServiceConfig{})
	applyNotifyMessage(svc, []byte("MAINPID=1234"))
	if got := svc.StatusMessages(); len(got) != 1 || got[0] != "MAINPID=1234" {
		t.Errorf("StatusMessages() = %v, want [\"MAINPID=1234\"]", got)
	}
}

func TestApplyNotifyMessageBlankLinesIgnored(t *testing.T) {
	svc := newServicePayload(unitconf.ServiceConfig{})
	applyNotifyMessage(svc, []byte("\n\nREADY=1\n\n"))
	if !svc.isReady() {
		t.Error("READY=1 amid blank lines should still mark the service ready")
	}
	if got := svc.StatusMessages(); len(got) != 0 {
		t.Errorf("StatusMessages() = %v, want none", got)
	}
}
