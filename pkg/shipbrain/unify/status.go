package unify

import (
	"strings"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

type statusPattern struct {
	status   model.Status
	keywords []string
}

// statusPatterns are checked in order; the first keyword hit wins. Negated
// and problem phrases come before the plain delivered keywords so that
// "no entregado" is an issue, not a delivery.
var statusPatterns = []statusPattern{
	{model.StatusReturned, []string{"devuelt", "devolucion", "retorn", "returned", "return to sender"}},
	{model.StatusCancelled, []string{"cancelad", "anulad", "cancelled", "canceled"}},
	{model.StatusIssue, []string{
		"no entregad", "novedad", "rechazad", "direccion errada", "direccion incorrecta",
		"no contesta", "destinatario ausente", "fallid", "siniestr", "extravi", "perdid", "incidencia",
		"problema", "not delivered", "undeliverable", "failed", "exception", "refused",
	}},
	{model.StatusDelivered, []string{"entregad", "delivered"}},
	{model.StatusOutForDelivery, []string{"en reparto", "reparto", "ruta de entrega", "con el mensajero", "out for delivery"}},
	{model.StatusInOffice, []string{"en oficina", "oficina", "reclamar en", "ready for pickup", "held at"}},
	{model.StatusInDistribution, []string{"distribucion", "distribution", "centro de acopio", "bodega destino", "hub"}},
	{model.StatusPickedUp, []string{"recogid", "recolectad", "admitid", "picked up"}},
	{model.StatusPending, []string{"pendiente", "guia generada", "por recoger", "label created", "pending", "creado"}},
	{model.StatusInTransit, []string{"transito", "transit", "en camino", "despachad", "viajando", "en ruta"}},
}

// InferStatus maps a carrier status description to a status. Matching is
// done on accent-stripped lower-case text; text that matches nothing is
// in_transit.
func InferStatus(text string) model.Status {
	if s := model.Status(strings.TrimSpace(text)); s.Valid() {
		return s
	}

	folded := foldText(text)
	if folded == "" {
		return model.StatusInTransit
	}
	for _, p := range statusPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(folded, kw) {
				return p.status
			}
		}
	}
	return model.StatusInTransit
}
