package api

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/lookbusy1344/coil-toolchain/assembler"
	"github.com/lookbusy1344/coil-toolchain/vm"
)

// assembleSource translates source and splits the error list into lines
func assembleSource(source string) (*assembler.Program, []string) {
	asm := assembler.New("api")
	program, err := asm.Assemble(source)
	if err == nil {
		return program, nil
	}

	errs := asm.Errors().Errors
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, strings.TrimSpace(e.Error()))
	}
	return nil, lines
}

// handleVersion handles GET /api/version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: s.version,
		Commit:  s.commit,
		Date:    s.date,
	})
}

// handleAssemble handles POST /api/assemble
func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req AssembleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	program, errs := assembleSource(req.Source)
	if errs != nil {
		writeJSON(w, http.StatusBadRequest, AssembleResponse{Success: false, Errors: errs})
		return
	}

	resp := AssembleResponse{
		Success: true,
		Records: len(program.Instructions),
		Symbols: program.Symbols.Len(),
		Labels:  program.Labels.Len(),
	}

	var buf bytes.Buffer
	if req.Binary {
		if err := assembler.WriteBinary(&buf, program); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Binary = base64.StdEncoding.EncodeToString(buf.Bytes())
	} else {
		if err := assembler.WriteText(&buf, program); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Text = buf.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRun handles POST /api/run: assemble, execute, capture output
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req RunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	program, errs := assembleSource(req.Source)
	if errs != nil {
		writeJSON(w, http.StatusBadRequest, RunResponse{Success: false, Errors: errs})
		return
	}

	var output bytes.Buffer
	machine := vm.New()
	machine.OutputWriter = &output
	if req.MaxCycles > 0 {
		machine.CycleLimit = req.MaxCycles
	}

	if err := machine.Load(program.Instructions); err != nil {
		writeJSON(w, http.StatusBadRequest, RunResponse{Success: false, Errors: []string{err.Error()}})
		return
	}

	runErr := machine.Run()
	resp := RunResponse{
		Success:  runErr == nil,
		ExitCode: machine.ExitCode,
		Output:   output.String(),
		Cycles:   machine.Cycles,
		State:    machine.State.String(),
	}
	if runErr != nil {
		resp.Errors = []string{runErr.Error()}
	}

	writeJSON(w, http.StatusOK, resp)
}
