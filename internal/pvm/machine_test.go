package pvm

import "testing"

func TestRunAddsAndHalts(t *testing.T) {
	code := []Instruction{
		{Op: OpLoadImm, Rd: 1, Imm: 10},
		{Op: OpLoadImm, Rd: 2, Imm: 7},
		{Op: OpAdd, Rd: 3, Rs1: 1, Rs2: 2},
		{Op: OpHalt},
	}
	m := NewMachine(code, 100)
	exit := Run(m, nil)
	if exit.Kind != ExitHalt {
		t.Fatalf("expected halt, got %v", exit)
	}
	if m.Regs[3] != 17 {
		t.Fatalf("expected 17, got %d", m.Regs[3])
	}
}

func TestRunOutOfGas(t *testing.T) {
	code := []Instruction{
		{Op: OpLoadImm, Rd: 1, Imm: 1},
		{Op: OpLoadImm, Rd: 1, Imm: 1},
		{Op: OpHalt},
	}
	m := NewMachine(code, 1)
	exit := Run(m, nil)
	if exit.Kind != ExitOutOfGas {
		t.Fatalf("expected out-of-gas, got %v", exit)
	}
}

func TestRunPageFaultOnUnmappedLoad(t *testing.T) {
	code := []Instruction{
		{Op: OpLoadImm, Rd: 1, Imm: 0},
		{Op: OpLoad, Rd: 2, Rs1: 1, Imm: 0},
		{Op: OpHalt},
	}
	m := NewMachine(code, 100)
	exit := Run(m, nil)
	if exit.Kind != ExitPageFault {
		t.Fatalf("expected page fault, got %v", exit)
	}
}

func TestRunHostCallContinuesAfterDispatch(t *testing.T) {
	code := []Instruction{
		{Op: OpHostCall, Call: HostGas},
		{Op: OpLoadImm, Rd: 1, Imm: 42},
		{Op: OpHalt},
	}
	m := NewMachine(code, 100)
	exit := Run(m, func(call HostCall, m *Machine) Exit {
		if call != HostGas {
			t.Fatalf("unexpected call %v", call)
		}
		return Exit{Kind: ExitContinue}
	})
	if exit.Kind != ExitHalt {
		t.Fatalf("expected halt after host-call resume, got %v", exit)
	}
	if m.Regs[1] != 42 {
		t.Fatalf("expected register set after resume, got %d", m.Regs[1])
	}
}

func TestRunHostCallPageFaultReentersSameInstruction(t *testing.T) {
	code := []Instruction{
		{Op: OpHostCall, Call: HostRead},
		{Op: OpHalt},
	}
	m := NewMachine(code, 100)
	calls := 0
	exit := Run(m, func(call HostCall, m *Machine) Exit {
		calls++
		return Exit{Kind: ExitPageFault, Address: 0x1000}
	})
	if exit.Kind != ExitPageFault {
		t.Fatalf("expected page fault, got %v", exit)
	}
	if m.PC != 0 {
		t.Fatalf("expected pc to remain at host-call instruction, got %d", m.PC)
	}
	if calls != 1 {
		t.Fatalf("expected dispatch called once, got %d", calls)
	}
}
