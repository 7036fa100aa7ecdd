package usecase

const reformulatePrompt = `You are an expert in Financial Information Retrieval.
Rewrite the user's raw question into a targeted, keyword-rich semantic query.
1. STRIP Company Names.
2. REMOVE Constraints (e.g. "return 'N/A'", "answer in millions", "only the name").
3. REMOVE Temporal Noise (fiscal year mentions that do not change the meaning).
4. EXPAND Terminology (e.g. "let go" -> "redundancy, severance, layoffs, workforce reduction").
Return JSON with a single field "reformulated_query".
User Input:
`

const analyzePrompt = `Extract the company name mentioned in the question and refine the question into a search query.
Return JSON with fields "extracted_company" (empty string if no company is mentioned) and "search_query".
Question: `

const companyNamePrompt = `Analyze the following text from an annual report cover page and extract the Company Name.
Return JSON with a single field "company_name". If there is no name, return "Unknown".

TEXT:
`

const extractSystemPrompt = `You are a precise financial analyst extracting data from annual reports.
Your task is to answer the user's question using ONLY the provided context documents.

RULES:
1. Extract value exactly. 'kind'='number' -> JSON number (no currency symbols, no thousands separators, keep the unit used in the document).
   'kind'='boolean' -> true/false. 'kind'='name' -> string. 'kind'='names' -> array of strings.
2. If info is NOT in Context, return value="N/A".
3. Populate 'references' list strictly from Context headers: "pdf_sha1" is the Filename, "page_index" is the Page Index.
4. JSON Output strictly adhering to schema.
`
