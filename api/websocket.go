package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lookbusy1344/coil-toolchain/vm"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins
		return true
	},
}

// streamRequest is the first client message on the run socket
type streamRequest struct {
	Source    string `json:"source"`
	MaxCycles uint64 `json:"max_cycles,omitempty"`
}

// wsWriter forwards program output into the event stream
type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := sendEvent(w.conn, ExecutionEvent{Type: "output", Output: string(p)}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// sendEvent writes one JSON event with a bounded deadline
func sendEvent(conn *websocket.Conn, event ExecutionEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// handleRunStream handles GET /api/ws/run: the client sends one request
// message, the server streams per-instruction events until the program
// halts or fails.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = sendEvent(conn, ExecutionEvent{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}

	program, errs := assembleSource(req.Source)
	if errs != nil {
		_ = sendEvent(conn, ExecutionEvent{Type: "error", Error: errs[0]})
		return
	}

	machine := vm.New()
	machine.OutputWriter = &wsWriter{conn: conn}
	if req.MaxCycles > 0 {
		machine.CycleLimit = req.MaxCycles
	}
	if err := machine.Load(program.Instructions); err != nil {
		_ = sendEvent(conn, ExecutionEvent{Type: "error", Error: err.Error()})
		return
	}

	machine.State = vm.StateRunning
	for machine.State == vm.StateRunning {
		pc := machine.PC
		if pc >= len(machine.Program) {
			break
		}
		inst := machine.Program[pc]

		if err := machine.Step(); err != nil {
			_ = sendEvent(conn, ExecutionEvent{Type: "error", Error: err.Error(), Cycles: machine.Cycles})
			return
		}

		if err := sendEvent(conn, ExecutionEvent{
			Type:   "step",
			Index:  pc,
			Opcode: inst.Opcode.String(),
			Cycles: machine.Cycles,
		}); err != nil {
			// Client went away; stop streaming
			return
		}
	}

	_ = sendEvent(conn, ExecutionEvent{
		Type:     "halted",
		ExitCode: machine.ExitCode,
		Cycles:   machine.Cycles,
	})
}
