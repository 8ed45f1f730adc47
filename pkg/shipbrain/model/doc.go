// Package model defines the shipment intelligence data types shared by every
// shipbrain component: shipment status, sourced field values, unified
// shipments, inbound tracking and order records, alerts, decisions, patterns,
// insights and predictions.
//
// Values returned across component boundaries are copies. Components never
// hand out references to the records they own.
package model
