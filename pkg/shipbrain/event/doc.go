// Package event provides the in-process event bus that connects shipbrain
// components.
//
// Events form a closed set of kinds. Each kind carries its own payload type,
// and the bus rejects anything else at compile time because Payload is sealed:
//
//	bus := event.NewBus(event.DefaultBusConfig)
//	unsubscribe := bus.On(event.KindShipmentDelayed, func(ctx context.Context, evt event.Event) error {
//	    p := evt.Payload.(event.ShipmentDelayed)
//	    log.Printf("delayed: %s", p.Shipment.TrackingNumber)
//	    return nil
//	})
//	defer unsubscribe()
//
//	bus.Emit(ctx, event.ShipmentDelayed{Shipment: s}, event.WithSource("brain"))
//
// Delivery is strictly FIFO. Emit appends to a bounded queue; the first caller
// to find the bus idle drains it, delivering each event to every listener for
// its kind (in registration order) and then to every wildcard listener before
// moving to the next event. Emit calls made while a drain is running, from a
// listener or from another goroutine, only enqueue. A failing or panicking
// listener is logged and counted and never stops delivery.
package event
