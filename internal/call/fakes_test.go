package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/peerline/peerline/internal/core"
	"github.com/peerline/peerline/internal/domain"
)

type fakeTrack struct {
	id   string
	kind domain.MediaKind

	mu      sync.Mutex
	stopped bool
	onEnded func()
}

func (t *fakeTrack) ID() string             { return t.id }
func (t *fakeTrack) Kind() domain.MediaKind { return t.kind }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

func (t *fakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// endByPlatform simulates the OS revoking the capture.
func (t *fakeTrack) endByPlatform() {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeTrackSet struct {
	tracks []core.Track
}

func (ts *fakeTrackSet) Tracks() []core.Track { return ts.tracks }

func (ts *fakeTrackSet) StopAll() {
	for _, t := range ts.tracks {
		t.Stop()
	}
}

func (ts *fakeTrackSet) allStopped() bool {
	for _, t := range ts.tracks {
		if !t.(*fakeTrack).Stopped() {
			return false
		}
	}
	return true
}

type fakeDevices struct {
	mu          sync.Mutex
	seq         int
	failAudio   bool
	failVideo   bool
	failDisplay bool
	userSets    []*fakeTrackSet
	displaySets []*fakeTrackSet
}

func (d *fakeDevices) AcquireUserMedia(_ context.Context, video bool) (core.TrackSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAudio {
		return nil, errors.New("no microphone")
	}
	if video && d.failVideo {
		return nil, errors.New("no camera")
	}
	d.seq++
	ts := &fakeTrackSet{tracks: []core.Track{
		&fakeTrack{id: fmt.Sprintf("audio-%d", d.seq), kind: domain.MediaAudio},
	}}
	if video {
		ts.tracks = append(ts.tracks, &fakeTrack{id: fmt.Sprintf("video-%d", d.seq), kind: domain.MediaVideo})
	}
	d.userSets = append(d.userSets, ts)
	return ts, nil
}

func (d *fakeDevices) AcquireDisplayMedia(_ context.Context) (core.TrackSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failDisplay {
		return nil, errors.New("no display")
	}
	d.seq++
	ts := &fakeTrackSet{tracks: []core.Track{
		&fakeTrack{id: fmt.Sprintf("screen-%d", d.seq), kind: domain.MediaVideo},
	}}
	d.displaySets = append(d.displaySets, ts)
	return ts, nil
}

type fakeSender struct {
	mu    sync.Mutex
	track core.Track
}

func (s *fakeSender) Track() core.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *fakeSender) ReplaceTrack(t core.Track) error {
	s.mu.Lock()
	s.track = t
	s.mu.Unlock()
	return nil
}

type fakeLink struct {
	mu          sync.Mutex
	seq         int
	senders     []*fakeSender
	remoteDescs []domain.SessionDescription
	candidates  []domain.Candidate
	closed      bool

	onCandidate func(domain.Candidate)
	onState     func(core.ICEState)
	onTrack     func(core.Track)
}

func (l *fakeLink) CreateOffer(context.Context) (domain.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	return domain.SessionDescription{Type: "offer", SDP: fmt.Sprintf("offer-sdp-%d", l.seq)}, nil
}

func (l *fakeLink) CreateAnswer(context.Context) (domain.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	return domain.SessionDescription{Type: "answer", SDP: fmt.Sprintf("answer-sdp-%d", l.seq)}, nil
}

func (l *fakeLink) SetRemoteDescription(sd domain.SessionDescription) error {
	l.mu.Lock()
	l.remoteDescs = append(l.remoteDescs, sd)
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) AddIceCandidate(c domain.Candidate) error {
	l.mu.Lock()
	l.candidates = append(l.candidates, c)
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) AddTrack(t core.Track) (core.TrackSender, error) {
	snd := &fakeSender{track: t}
	l.mu.Lock()
	l.senders = append(l.senders, snd)
	l.mu.Unlock()
	return snd, nil
}

func (l *fakeLink) RemoveTrack(s core.TrackSender) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, cur := range l.senders {
		if cur == s {
			l.senders = append(l.senders[:i], l.senders[i+1:]...)
			return nil
		}
	}
	return errors.New("unknown sender")
}

func (l *fakeLink) Senders() []core.TrackSender {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.TrackSender, len(l.senders))
	for i, s := range l.senders {
		out[i] = s
	}
	return out
}

func (l *fakeLink) OnIceCandidate(fn func(domain.Candidate)) { l.onCandidate = fn }
func (l *fakeLink) OnIceStateChange(fn func(core.ICEState))  { l.onState = fn }
func (l *fakeLink) OnRemoteTrack(fn func(core.Track))        { l.onTrack = fn }

func (l *fakeLink) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) senderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.senders)
}

func (l *fakeLink) fireIceState(st core.ICEState) {
	if l.onState != nil {
		l.onState(st)
	}
}

type fakeLinkFactory struct {
	mu       sync.Mutex
	failures int
	links    []*fakeLink
}

func (f *fakeLinkFactory) NewPeerLink(context.Context) (core.PeerLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("peer link unavailable")
	}
	l := &fakeLink{}
	f.links = append(f.links, l)
	return l, nil
}

func (f *fakeLinkFactory) last() *fakeLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.links) == 0 {
		return nil
	}
	return f.links[len(f.links)-1]
}

type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *fakeNotifier) Notify(title, detail string) {
	n.mu.Lock()
	n.infos = append(n.infos, title)
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyError(title, detail string) {
	n.mu.Lock()
	n.errors = append(n.errors, title)
	n.mu.Unlock()
}

func (n *fakeNotifier) errorCount(title string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, t := range n.errors {
		if t == title {
			count++
		}
	}
	return count
}

func (n *fakeNotifier) sawInfo(title string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.infos {
		if t == title {
			return true
		}
	}
	return false
}

func (n *fakeNotifier) sawError(title string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.errors {
		if t == title {
			return true
		}
	}
	return false
}

// relaySignaler stamps the sender and hands the envelope straight to
// the peer session, standing in for the relay round-trip.
type relaySignaler struct {
	from domain.UserID

	mu      sync.Mutex
	sent    []domain.Envelope
	fail    bool
	deliver func(domain.Envelope)
}

func (r *relaySignaler) Send(env domain.Envelope) error {
	r.mu.Lock()
	if r.fail {
		r.mu.Unlock()
		return errors.New("not connected to signaling")
	}
	env.Sender = r.from
	r.sent = append(r.sent, env)
	deliver := r.deliver
	r.mu.Unlock()
	if deliver != nil {
		deliver(env)
	}
	return nil
}

func (r *relaySignaler) byKind(kind domain.EnvelopeKind) []domain.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Envelope
	for _, env := range r.sent {
		if env.Kind == kind {
			out = append(out, env)
		}
	}
	return out
}

// harness wires two sessions through in-process signaling.
type harness struct {
	a, b           *Session
	aSig, bSig     *relaySignaler
	aDev, bDev     *fakeDevices
	aLinks, bLinks *fakeLinkFactory
	aNote, bNote   *fakeNotifier
	aStore, bStore core.CallStore
}

type sessionPart struct {
	sig   *relaySignaler
	dev   *fakeDevices
	links *fakeLinkFactory
	note  *fakeNotifier
}

func newTestSession(id domain.UserID, name string, store core.CallStore) (*Session, *sessionPart) {
	part := &sessionPart{
		sig:   &relaySignaler{from: id},
		dev:   &fakeDevices{},
		links: &fakeLinkFactory{},
		note:  &fakeNotifier{},
	}
	s := New(Config{
		UserID:   id,
		Username: name,
		Signaler: part.sig,
		Devices:  part.dev,
		Links:    part.links,
		Store:    store,
		Notifier: part.note,
	})
	return s, part
}

func newHarness(aStore, bStore core.CallStore) *harness {
	a, ap := newTestSession("alice", "Alice", aStore)
	b, bp := newTestSession("bob", "Bob", bStore)
	ap.sig.deliver = func(env domain.Envelope) {
		_ = b.HandleEnvelope(context.Background(), env)
	}
	bp.sig.deliver = func(env domain.Envelope) {
		_ = a.HandleEnvelope(context.Background(), env)
	}
	return &harness{
		a: a, b: b,
		aSig: ap.sig, bSig: bp.sig,
		aDev: ap.dev, bDev: bp.dev,
		aLinks: ap.links, bLinks: bp.links,
		aNote: ap.note, bNote: bp.note,
		aStore: aStore, bStore: bStore,
	}
}

// connect drives both sessions to Connected.
func (h *harness) connect(ctx context.Context, video bool) error {
	if err := h.a.InitiateCall(ctx, "bob", "Bob", video); err != nil {
		return err
	}
	return h.b.AnswerCall(ctx)
}
