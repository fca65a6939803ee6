package agent

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasirabd/suarasemar/internal/conversation"
	"github.com/yasirabd/suarasemar/internal/protocol"
	"github.com/yasirabd/suarasemar/internal/store"
)

func TestOpen_SeedsHistoryFromSettings(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	settings := store.NewSettings(st)
	require.NoError(t, settings.SavePrompt(ctx, "prompt"))
	require.NoError(t, settings.SaveProfile(ctx, store.Profile{Name: "Ana"}))
	require.NoError(t, settings.SaveVision(ctx, store.VisionSettings{Enabled: true}))

	rec := &recorder{}
	s := NewSession(Services{Settings: settings, Sessions: store.NewSessions(st)}, Config{}, rec, nil)
	require.NoError(t, s.Open(ctx))

	want := []conversation.Message{
		conversation.NewMessage(conversation.RoleSystem, "prompt"),
		conversation.IdentityMessage("Ana"),
	}
	if diff := cmp.Diff(want, s.History().Snapshot()); diff != "" {
		t.Fatalf("history (-want +got):\n%s", diff)
	}
	st0 := rec.ofType(protocol.TypeStatus)[0].(protocol.Status)
	assert.Equal(t, protocol.StatusConnected, st0.Status)
	assert.Equal(t, true, st0.Data["vision_enabled"])
}

func TestOpen_CorruptSettingsFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Save(ctx, "settings/system_prompt.json", []byte("not json")))
	require.NoError(t, st.Save(ctx, "settings/user_profile.json", []byte("not json")))
	require.NoError(t, st.Save(ctx, "settings/vision_settings.json", []byte("not json")))

	rec := &recorder{}
	s := NewSession(Services{Settings: store.NewSettings(st), Sessions: store.NewSessions(st)}, Config{}, rec, nil)
	require.NoError(t, s.Open(ctx))

	want := []conversation.Message{conversation.NewMessage(conversation.RoleSystem, store.DefaultPrompt)}
	if diff := cmp.Diff(want, s.History().Snapshot()); diff != "" {
		t.Fatalf("history (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{protocol.TypeError, protocol.TypeError, protocol.TypeError}, rec.kinds())
	errs := rec.ofType(protocol.TypeError)
	assert.Contains(t, errs[0].(protocol.Error).Error, "load system prompt")
	assert.Contains(t, errs[1].(protocol.Error).Error, "load user profile")
	assert.Contains(t, errs[2].(protocol.Error).Error, "load vision settings")

	st0 := rec.ofType(protocol.TypeStatus)[0].(protocol.Status)
	assert.Equal(t, protocol.StatusConnected, st0.Status)
	assert.Equal(t, false, st0.Data["vision_enabled"])
}

func TestOpen_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := store.NewMemoryStore()
	s := NewSession(Services{Settings: store.NewSettings(st), Sessions: store.NewSessions(st)}, Config{}, &recorder{}, nil)
	assert.ErrorIs(t, s.Open(ctx), context.Canceled)
}

func TestOpen_DefaultPrompt(t *testing.T) {
	h := newHarness(t, "")
	got := h.sess.History().Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, store.DefaultPrompt, got[0].Content)
}

func TestUpdateSystemPrompt(t *testing.T) {
	h := newHarness(t, "old")
	h.sess.UpdateUserProfile(h.ctx, "Ana")

	h.sess.UpdateSystemPrompt(h.ctx, "new")
	got := h.sess.History().Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Content)
	assert.True(t, got[1].IsIdentity())

	stored, err := h.sess.svc.Settings.LoadPrompt(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", stored)

	h.sess.SendSystemPrompt()
	assert.Equal(t, "new", h.rec.ofType(protocol.TypeSystemPrompt)[0].(protocol.SystemPrompt).Prompt)
}

func TestUpdateSystemPrompt_RejectsBlank(t *testing.T) {
	h := newHarness(t, "old")
	before := h.sess.History().Snapshot()
	saves := h.st.saves.Load()

	h.sess.UpdateSystemPrompt(h.ctx, " \n ")

	r := h.rec.ofType(protocol.TypeSystemPromptUpdated)[0].(protocol.Result)
	assert.False(t, r.Success)
	assert.Equal(t, "System prompt cannot be empty", r.Error)
	assert.Equal(t, before, h.sess.History().Snapshot())
	assert.Equal(t, saves, h.st.saves.Load())
}

func TestUpdateUserProfile_StoreFirst(t *testing.T) {
	h := newHarness(t, "prompt")
	h.st.fail = errBoom

	h.sess.UpdateUserProfile(h.ctx, "Ana")

	assert.Empty(t, h.rec.ofType(protocol.TypeUserProfileUpdated))
	assert.Len(t, h.rec.ofType(protocol.TypeError), 1)
	assert.Equal(t, "", h.sess.userName(), "cache unchanged when the write fails")
	assert.Len(t, h.sess.History().Snapshot(), 1)
}

func TestUpdateUserProfile_EmptyNameRemovesIdentity(t *testing.T) {
	h := newHarness(t, "prompt")
	h.sess.UpdateUserProfile(h.ctx, "Ana")
	require.Len(t, h.sess.History().Snapshot(), 2)

	h.sess.UpdateUserProfile(h.ctx, "")
	assert.Equal(t, msgs("system", "prompt"), h.sess.History().Snapshot())

	h.sess.SendUserProfile()
	assert.Equal(t, "", h.rec.ofType(protocol.TypeUserProfile)[0].(protocol.UserProfile).Name)
	for _, r := range h.rec.ofType(protocol.TypeUserProfileUpdated) {
		assert.True(t, r.(protocol.Result).Success)
	}
}

func TestClearHistory_KeepsIdentity(t *testing.T) {
	h := newHarness(t, "prompt")
	h.sess.UpdateUserProfile(h.ctx, "Ana")
	h.sess.History().Append(conversation.NewMessage(conversation.RoleUser, "hi"))

	h.sess.ClearHistory()

	want := []conversation.Message{
		conversation.NewMessage(conversation.RoleSystem, "prompt"),
		conversation.IdentityMessage("Ana"),
	}
	assert.Equal(t, want, h.sess.History().Snapshot())
	assert.Contains(t, h.rec.statuses(), protocol.StatusHistoryCleared)
}

func TestVisionSettingsRoundTrip(t *testing.T) {
	h := newHarness(t, "prompt")
	assert.False(t, h.sess.VisionEnabled())

	h.sess.UpdateVisionSettings(h.ctx, true)
	assert.True(t, h.sess.VisionEnabled())
	v, err := h.sess.svc.Settings.LoadVision(h.ctx)
	require.NoError(t, err)
	assert.True(t, v.Enabled)

	h.sess.SendVisionSettings()
	assert.True(t, h.rec.ofType(protocol.TypeVisionSettings)[0].(protocol.VisionSettings).Enabled)
}
