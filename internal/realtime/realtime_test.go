package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/notify"
	"github.com/fjod/cartsync/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeCarts struct {
	m     sync.Mutex
	carts map[string]*domain.ResolvedCart
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[string]*domain.ResolvedCart{}}
}

func (f *fakeCarts) CreateCart(context.Context) (*domain.ResolvedCart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	c := &domain.ResolvedCart{ID: primitive.NewObjectID(), Products: []domain.ResolvedItem{}}
	f.carts[c.ID.Hex()] = c
	return c, nil
}

func (f *fakeCarts) get(id string) (*domain.ResolvedCart, error) {
	c, ok := f.carts[id]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "cart.get", "cart %s not found", id)
	}
	return c, nil
}

func (f *fakeCarts) GetCart(_ context.Context, id string) (*domain.ResolvedCart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return f.get(id)
}

func (f *fakeCarts) AddItem(_ context.Context, id, productID string) (*domain.ResolvedCart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return nil, domain.Errorf(domain.KindConflict, "cart.add_item", "cart %s is finalized and cannot be modified", id)
	}
	pid, _ := primitive.ObjectIDFromHex(productID)
	c.Products = append(c.Products, domain.ResolvedItem{Product: domain.Product{ID: pid}, Quantity: 1})
	return c, nil
}

func (f *fakeCarts) DecrementItem(_ context.Context, id, _ string) (*domain.ResolvedCart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return f.get(id)
}

func (f *fakeCarts) FinalizeCart(_ context.Context, id string) (*domain.ResolvedCart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	c.Finalized = true
	c.UpdatedAt = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return c, nil
}

type fakeProducts struct {
	m        sync.Mutex
	products []domain.Product
}

func (f *fakeProducts) Create(_ context.Context, in service.NewProduct) (*domain.Product, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if in.Title == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, "product.create", "title is required")
	}
	p := domain.Product{ID: primitive.NewObjectID(), Title: in.Title}
	f.products = append(f.products, p)
	return &p, nil
}

func (f *fakeProducts) Update(context.Context, string, service.ProductUpdate) (*domain.Product, error) {
	return &domain.Product{}, nil
}

func (f *fakeProducts) Delete(_ context.Context, id string) error {
	return domain.Errorf(domain.KindNotFound, "product.delete", "product %s not found", id)
}

func (f *fakeProducts) Snapshot(context.Context) ([]domain.Product, error) {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]domain.Product{}, f.products...), nil
}

type testEnv struct {
	hub    *Hub
	carts  *fakeCarts
	server *httptest.Server
}

func setupRealtime(t *testing.T) *testEnv {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	carts := newFakeCarts()
	products := &fakeProducts{products: []domain.Product{{ID: primitive.NewObjectID(), Title: "Mate"}}}
	commands := NewCommands(hub, carts, products, notify.NewNotifier(hub))
	server := httptest.NewServer(NewServer(hub, commands, nil))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &testEnv{hub: hub, carts: carts, server: server}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// dial connects and consumes the product list sent on connect.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := readFrame(t, conn)
	require.Equal(t, notify.EventProductsUpdated, welcome.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func TestWelcome_SendsProducts(t *testing.T) {
	env := setupRealtime(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn)
	assert.Equal(t, notify.EventProductsUpdated, f.Type)
	var products []domain.Product
	require.NoError(t, json.Unmarshal(f.Data, &products))
	require.Len(t, products, 1)
	assert.Equal(t, "Mate", products[0].Title)

	assert.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPingPong(t *testing.T) {
	env := setupRealtime(t)
	conn := env.dial(t)

	send(t, conn, MessageTypePing, nil)
	assert.Equal(t, MessageTypePong, readFrame(t, conn).Type)
}

func TestCreateCartThenAdd(t *testing.T) {
	env := setupRealtime(t)
	conn := env.dial(t)

	send(t, conn, CommandCreateCart, nil)
	created := readFrame(t, conn)
	require.Equal(t, notify.EventCartCreated, created.Type)
	var cart domain.ResolvedCart
	require.NoError(t, json.Unmarshal(created.Data, &cart))

	send(t, conn, CommandAddToCart, map[string]string{"cartId": cart.ID.Hex(), "productId": primitive.NewObjectID().Hex()})
	updated := readFrame(t, conn)
	require.Equal(t, notify.EventCartUpdated, updated.Type)
	require.NoError(t, json.Unmarshal(updated.Data, &cart))
	assert.Len(t, cart.Products, 1)
}

func TestAddToCart_JoinsRoomAndOnlyRoomReceives(t *testing.T) {
	env := setupRealtime(t)
	cart, err := env.carts.CreateCart(context.Background())
	require.NoError(t, err)
	cartID := cart.ID.Hex()

	member := env.dial(t)
	outsider := env.dial(t)

	send(t, member, CommandAddToCart, map[string]string{"cartId": cartID, "productId": primitive.NewObjectID().Hex()})
	assert.Equal(t, notify.EventCartUpdated, readFrame(t, member).Type)
	assert.Equal(t, 1, env.hub.RoomSize(cartID))

	// the outsider only sees its own pong
	send(t, outsider, MessageTypePing, nil)
	assert.Equal(t, MessageTypePong, readFrame(t, outsider).Type)
}

func TestFinalizeCart_BroadcastsToRoom(t *testing.T) {
	env := setupRealtime(t)
	cart, err := env.carts.CreateCart(context.Background())
	require.NoError(t, err)
	cartID := cart.ID.Hex()

	watcher := env.dial(t)
	send(t, watcher, CommandJoinCart, map[string]string{"cartId": cartID})
	assert.Equal(t, notify.EventCartUpdated, readFrame(t, watcher).Type)

	actor := env.dial(t)
	send(t, actor, CommandFinalizeCart, map[string]string{"cartId": cartID})

	assert.Equal(t, notify.EventCartUpdated, readFrame(t, watcher).Type)
	finalized := readFrame(t, watcher)
	require.Equal(t, notify.EventCartFinalized, finalized.Type)

	var payload notify.FinalizedPayload
	require.NoError(t, json.Unmarshal(finalized.Data, &payload))
	assert.Equal(t, cartID, payload.CartID)
	assert.Equal(t, 2026, payload.FinalizedAt.Year())
}

func TestCommandErrors(t *testing.T) {
	env := setupRealtime(t)
	conn := env.dial(t)

	tests := []struct {
		name string
		typ  string
		data any
		msg  string
	}{
		{"unknown", "dance", nil, "unknown command"},
		{"missing product id", CommandAddToCart, map[string]string{"cartId": "x"}, "cartId and productId are required"},
		{"missing cart", CommandFinalizeCart, map[string]string{"cartId": primitive.NewObjectID().Hex()}, "not found"},
		{"bad payload", CommandDecrementFromCart, "nope", "invalid command payload"},
		{"invalid product", CommandAddProduct, map[string]any{"price": 3}, "title is required"},
		{"delete missing product", CommandDeleteProduct, "abc", "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.typ, tt.data)
			f := readFrame(t, conn)
			require.Equal(t, MessageTypeError, f.Type)
			var body map[string]string
			require.NoError(t, json.Unmarshal(f.Data, &body))
			assert.Contains(t, body["message"], tt.msg)
		})
	}
}

func TestAddProduct_BroadcastsToEveryone(t *testing.T) {
	env := setupRealtime(t)
	a := env.dial(t)
	b := env.dial(t)

	send(t, a, CommandAddProduct, map[string]any{"title": "Bombilla"})

	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		require.Equal(t, notify.EventProductsUpdated, f.Type)
		var products []domain.Product
		require.NoError(t, json.Unmarshal(f.Data, &products))
		assert.Len(t, products, 2)
	}
}

func TestHub_DisconnectLeavesRooms(t *testing.T) {
	env := setupRealtime(t)
	cart, err := env.carts.CreateCart(context.Background())
	require.NoError(t, err)

	conn := env.dial(t)
	send(t, conn, CommandJoinCart, map[string]string{"cartId": cart.ID.Hex()})
	readFrame(t, conn)
	require.Equal(t, 1, env.hub.RoomSize(cart.ID.Hex()))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return env.hub.ClientCount() == 0 && env.hub.RoomSize(cart.ID.Hex()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWhenFull(t *testing.T) {
	hub := NewHub()
	for range cap(hub.broadcast) {
		require.NoError(t, hub.Publish(context.Background(), notify.Event{Type: "x"}))
	}
	assert.ErrorIs(t, hub.Publish(context.Background(), notify.Event{Type: "x"}), ErrBroadcastFull)
}
