package agent

import "github.com/ocx/oefbroker/internal/wire"

// NoOpCallbacks implements decoder.Callbacks with methods that do
// nothing, so a concrete agent can embed it and override only the
// handful of callbacks it cares about — mirroring
// apps/clientsherd/src/main.cpp's SimpleAgent, which overrides every
// virtual method but leaves most bodies empty except onSearchResult.
type NoOpCallbacks struct{}

func (NoOpCallbacks) OnOEFError(uint32, uint32)              {}
func (NoOpCallbacks) OnDialogueError(uint32, uint32, string) {}
func (NoOpCallbacks) OnSearchResult(uint32, []string)        {}
func (NoOpCallbacks) OnMessage(uint32, uint32, string, string) {}
func (NoOpCallbacks) OnCFP(uint32, uint32, string, uint32, wire.CFPType)         {}
func (NoOpCallbacks) OnPropose(uint32, uint32, string, uint32, wire.ProposeType) {}
func (NoOpCallbacks) OnAccept(uint32, uint32, string, uint32)                    {}
func (NoOpCallbacks) OnDecline(uint32, uint32, string, uint32)                   {}
