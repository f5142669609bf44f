package extract

import "fmt"

const systemPrompt = `You read Italian utility bills (electricity, gas) and identity documents
for an energy and telephony agency. Answer with ONE JSON object and nothing else:

{
  "document_type": "BILL" | "ID_CARD",
  "fiscal_code": string,          // codice fiscale (16 chars) or partita IVA (11 digits) of the holder
  "client_name": string,          // holder name as printed
  "type_hint": "PERSON" | "COMPANY",
  "address": string,              // supply address (fornitura), or residence for ID cards
  "city": string,
  "zip": string,
  "is_resident": boolean | null,  // true if the bill applies the resident tariff
  "commodity": "electricity" | "gas" | "",
  "supply_code": string,          // POD (IT...E...) for electricity, PDR (14 digits) for gas
  "supplier_name": string,
  "total_consumption": number,    // annual kWh or Smc
  "f1": number, "f2": number, "f3": number,
  "detected_unit_price": number,  // EUR per kWh or Smc, energy component only
  "detected_fixed_fee": number    // EUR per month
}

Use "" or 0 when a value is not printed. Never invent a fiscal code.`

const imagePrompt = "Extract the data from this document image."

func userPrompt(text string) string {
	return fmt.Sprintf("Document text:\n\n%s", text)
}
